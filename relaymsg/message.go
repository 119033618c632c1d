package relaymsg

import "time"

// Well-known message type tags. The relay treats these as opaque strings
// except where noted; application payloads beyond this set are never
// parsed, per the relay's scope.
const (
	TypeConnected         = "connected"
	TypeRequestState      = "request_state"
	TypeDeviceOnline      = "device_online"
	TypeDeviceOffline     = "device_offline"
	TypeDeviceStatus      = "device_status"
	TypeStatus            = "status"
	TypeStatusDelta       = "status_delta"
	TypeDeviceInfo        = "device_info"
	TypeESPStatus         = "esp_status"
	TypePicoStatus        = "pico_status"
	TypeRefreshAuth       = "refresh_auth"
	TypeAuthRefreshed     = "auth_refreshed"
	TypePing              = "ping"
	TypePong              = "pong"
	TypeGetMetrics        = "get_metrics"
	TypeMetrics           = "metrics"
	TypeTokenExpiring     = "token_expiring"
	TypeQueuedMessageSent = "queued_message_sent"
	TypeError             = "error"
)

// Message is the tagged-map envelope every frame on either socket is
// shaped as: a required "type" string plus a handful of optional,
// well-known fields and arbitrary type-specific fields the relay never
// interprets.
type Message struct {
	fields map[string]interface{}
}

// NewMessage creates a Message of the given type with no other fields set.
func NewMessage(messageType string) *Message {
	return &Message{fields: map[string]interface{}{"type": messageType}}
}

// Fields exposes the raw backing map, e.g. for building a reply that
// copies fields from a request.
func (m *Message) Fields() map[string]interface{} {
	if m.fields == nil {
		m.fields = make(map[string]interface{})
	}

	return m.fields
}

// Type returns the message's required "type" field, or the empty string if
// absent or not a string.
func (m *Message) Type() string {
	return m.stringField("type")
}

// DeviceID returns the message's optional "deviceId" field.
func (m *Message) DeviceID() string {
	return m.stringField("deviceId")
}

// SetDeviceID stamps the "deviceId" field, as the Device Relay does for
// every inbound device message.
func (m *Message) SetDeviceID(id string) {
	m.Fields()["deviceId"] = id
}

// RequestID returns the message's optional "requestId" field, used to
// correlate an HTTP-originated request with a device's eventual response.
func (m *Message) RequestID() string {
	return m.stringField("requestId")
}

// SetRequestID stamps the "requestId" field.
func (m *Message) SetRequestID(id string) {
	m.Fields()["requestId"] = id
}

// Timestamp returns the message's optional "timestamp" field as
// milliseconds since the epoch, and whether it was present.
func (m *Message) Timestamp() (int64, bool) {
	switch v := m.Fields()["timestamp"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// SetTimestamp stamps the "timestamp" field with t expressed as
// milliseconds since the epoch.
func (m *Message) SetTimestamp(t time.Time) {
	m.Fields()["timestamp"] = t.UnixMilli()
}

// StampTimestampIfAbsent sets "timestamp" to now (in ms) only if the
// message didn't already carry one -- the timestamp half of the Device
// Relay's per-message processing rule (the other half stamps deviceId).
func (m *Message) StampTimestampIfAbsent(now time.Time) {
	if _, ok := m.Timestamp(); !ok {
		m.SetTimestamp(now)
	}
}

// Get returns an arbitrary field by name.
func (m *Message) Get(key string) (interface{}, bool) {
	v, ok := m.Fields()[key]
	return v, ok
}

// Set assigns an arbitrary field by name.
func (m *Message) Set(key string, value interface{}) {
	m.Fields()[key] = value
}

func (m *Message) stringField(key string) string {
	if s, ok := m.Fields()[key].(string); ok {
		return s
	}

	return ""
}
