// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"sync"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relaymsg"
	"github.com/google/uuid"
)

// DefaultQueueCapacity is the per-device pending-message FIFO capacity.
const DefaultQueueCapacity = 50

// DefaultQueueTTL is how long a pending message may sit in the queue
// before a sweep discards it unsent.
const DefaultQueueTTL = 10 * time.Second

// MaxPendingRetries is how many flush attempts a single pending message
// gets before it is dropped.
const MaxPendingRetries = 3

// PendingMessage is a device-bound message that could not be delivered
// immediately because the device was offline.
type PendingMessage struct {
	Message              *relaymsg.Message
	EnqueuedAt           time.Time
	Retries              int
	OriginatingSessionID uuid.UUID
}

func (p *PendingMessage) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.EnqueuedAt) > ttl
}

// pendingQueues is the Client Proxy's per-device offline queue, a bounded
// FIFO that drops from the head when full.
type pendingQueues struct {
	mutex    sync.Mutex
	capacity int
	ttl      time.Duration
	queues   map[device.ID][]*PendingMessage
}

func newPendingQueues(capacity int, ttl time.Duration) *pendingQueues {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	if ttl <= 0 {
		ttl = DefaultQueueTTL
	}

	return &pendingQueues{
		capacity: capacity,
		ttl:      ttl,
		queues:   make(map[device.ID][]*PendingMessage),
	}
}

// enqueue appends a pending message for id, dropping the oldest entry if
// the queue is already at capacity.
func (q *pendingQueues) enqueue(id device.ID, p *PendingMessage) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	entries := q.queues[id]
	if len(entries) >= q.capacity {
		entries = entries[1:]
	}

	q.queues[id] = append(entries, p)
}

func (q *pendingQueues) depth(id device.ID) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.queues[id])
}

func (q *pendingQueues) totalDepth() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	total := 0
	for _, entries := range q.queues {
		total += len(entries)
	}

	return total
}

// sweep purges expired entries across every device queue and removes any
// queue left empty, returning how many entries were purged.
func (q *pendingQueues) sweep(now time.Time) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	purged := 0
	for id, entries := range q.queues {
		live := entries[:0]
		for _, p := range entries {
			if p.expired(now, q.ttl) {
				purged++
				continue
			}

			live = append(live, p)
		}

		if len(live) == 0 {
			delete(q.queues, id)
		} else {
			q.queues[id] = live
		}
	}

	return purged
}

// drain removes and returns every (non-expired) pending message queued
// for id, emptying its queue -- flushing is single-shot, not
// retry-in-place, per the spec.
func (q *pendingQueues) drain(id device.ID, now time.Time) []*PendingMessage {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	entries := q.queues[id]
	delete(q.queues, id)

	live := make([]*PendingMessage, 0, len(entries))
	for _, p := range entries {
		if !p.expired(now, q.ttl) {
			live = append(live, p)
		}
	}

	return live
}
