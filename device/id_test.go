package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseID(t *testing.T) {
	assert := assert.New(t)
	testData := []struct {
		id           string
		expected     ID
		expectsError bool
	}{
		{"BRW-01ABCDEF", "BRW-01ABCDEF", false},
		{"brw-01abcdef", "BRW-01ABCDEF", false},
		{"BRW-DeadBeef", "BRW-DEADBEEF", false},
		{"BRW-01ABCDE", "", true},
		{"BRW-01ABCDEFF", "", true},
		{"BRW-01ABCDEG", "", true},
		{"ESP-01ABCDEF", "", true},
		{"", "", true},
	}

	for _, record := range testData {
		t.Logf("%#v", record)
		id, err := ParseID(record.id)
		assert.Equal(record.expected, id)
		assert.Equal(record.expectsError, err != nil)
		assert.Equal([]byte(record.expected), id.Bytes())
	}
}

func TestIDString(t *testing.T) {
	assert := assert.New(t)

	id, err := ParseID("BRW-CAFEBABE")
	assert.NoError(err)
	assert.Equal("BRW-CAFEBABE", id.String())
}
