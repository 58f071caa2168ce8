package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIsRequest(t *testing.T) {
	testCases := []struct {
		name       string
		responseTo int32
		body       bson.D
		expected   bool
	}{
		{
			name:     "plain request",
			body:     bson.D{{Key: "ping", Value: int32(1)}},
			expected: true,
		},
		{
			name:       "reply by responseTo",
			responseTo: 7,
			body:       bson.D{{Key: "ok", Value: float64(1)}},
			expected:   false,
		},
		{
			// The first requestId and responseTo on a connection are both
			// 0; the "ok" field is the backup signal.
			name:     "first reply with responseTo 0",
			body:     bson.D{{Key: "ok", Value: float64(1)}},
			expected: false,
		},
	}
	for _, c := range testCases {
		msg := &MongoMessage{ResponseTo: c.responseTo, Body: c.body}
		assert.Equal(t, c.expected, msg.IsRequest(), c.name)
	}
}

func TestCommandName(t *testing.T) {
	request := &MongoMessage{Body: bson.D{{Key: "find", Value: "coll"}, {Key: "$db", Value: "test"}}}
	assert.Equal(t, "find", request.CommandName())

	reply := &MongoMessage{ResponseTo: 7, Body: bson.D{{Key: "ok", Value: float64(1)}}}
	assert.Equal(t, "", reply.CommandName())
}

func TestSafeGet(t *testing.T) {
	msg := &MongoMessage{Body: bson.D{
		{Key: "client", Value: bson.D{
			{Key: "application", Value: bson.D{
				{Key: "name", Value: "mongod"},
				{Key: "pid", Value: int64(1001)},
			}},
		}},
	}}

	name, ok := msg.SafeGetString("client.application.name")
	assert.True(t, ok)
	assert.Equal(t, "mongod", name)

	pid, ok := msg.SafeGetInt("client.application.pid")
	assert.True(t, ok)
	assert.Equal(t, 1001, pid)

	_, ok = msg.SafeGet("client.driver.name")
	assert.False(t, ok)

	// A path that descends through a leaf is absent, not an error.
	_, ok = msg.SafeGet("client.application.name.sub")
	assert.False(t, ok)
}

func TestSortKeyLess(t *testing.T) {
	t0 := time.Date(2020, 7, 19, 16, 58, 23, 0, time.UTC)
	t1 := t0.Add(time.Millisecond)

	testCases := []struct {
		name     string
		a, b     SortKey
		expected bool
	}{
		{"by start time", SortKey{Start: t0}, SortKey{Start: t1}, true},
		{"start beats cluster time", SortKey{Start: t1, Time: 1}, SortKey{Start: t0, Time: 99}, false},
		{"by cluster time", SortKey{Start: t0, Time: 1}, SortKey{Start: t0, Time: 2}, true},
		{"by increment", SortKey{Start: t0, Time: 1, Inc: 1}, SortKey{Start: t0, Time: 1, Inc: 2}, true},
		{"equal", SortKey{Start: t0, Time: 1, Inc: 1}, SortKey{Start: t0, Time: 1, Inc: 1}, false},
	}
	for _, c := range testCases {
		assert.Equal(t, c.expected, c.a.Less(c.b), c.name)
	}
}
