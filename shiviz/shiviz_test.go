package shiviz

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajdavis/mongo-space-time/logfile"
	"github.com/ajdavis/mongo-space-time/trace"
	"github.com/ajdavis/mongo-space-time/wire"
)

var testStart = time.Date(2020, 7, 19, 16, 58, 23, 0, time.UTC)

type sliceSource struct {
	msgs []*wire.MongoMessage
}

func (s *sliceSource) Next() *wire.MongoMessage {
	if len(s.msgs) == 0 {
		return nil
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	return msg
}

func twoServerLog() *logfile.LogFile {
	lf := &logfile.LogFile{
		PIDToServer:  make(map[int]*logfile.Server),
		PortToServer: make(map[int]*logfile.Server),
	}
	for _, s := range []*logfile.Server{
		{PID: 1000, Port: 20020, Connections: make(map[string]int)},
		{PID: 1001, Port: 20021, Connections: make(map[string]int)},
	} {
		lf.PIDToServer[s.PID] = s
		lf.PortToServer[s.Port] = s
	}
	return lf
}

func message(src, dst int, requestID, responseTo int32, at time.Duration, body bson.D) *wire.MongoMessage {
	msg := &wire.MongoMessage{
		Src:        src,
		Dst:        dst,
		RequestID:  requestID,
		ResponseTo: responseTo,
		Body:       body,
		Start:      testStart.Add(at),
		End:        testStart.Add(at),
	}
	msg.SortKey = wire.SortKey{Start: msg.Start}
	return msg
}

// TestSynthesizeRequestReply replays one ping exchange between two servers,
// captured as two separate pcaps, and checks every emitted event.
func TestSynthesizeRequestReply(t *testing.T) {
	log := twoServerLog()

	request := message(54321, 20020, 7, 0, 0, bson.D{
		{Key: "ping", Value: int32(1)},
		{Key: "$db", Value: "admin"},
		{Key: "client", Value: bson.D{
			{Key: "application", Value: bson.D{
				{Key: "name", Value: "mongod"},
				{Key: "pid", Value: int32(1001)},
			}},
		}},
	})
	reply := message(20020, 54321, 42, 7, time.Millisecond, bson.D{{Key: "ok", Value: float64(1)}})

	merged := trace.Merge(
		&sliceSource{msgs: []*wire.MongoMessage{request}},
		&sliceSource{msgs: []*wire.MongoMessage{reply}},
	)
	events := Synthesize(trace.Classify(merged, log), log)
	require.Len(t, events, 4)

	// The requester, pid 1001 on port 20021, sends first.
	assert.Equal(t, "20021", events[0].Host)
	assert.Equal(t, map[string]int{"20020": 0, "20021": 1}, events[0].Clock)
	assert.True(t, strings.HasPrefix(events[0].Description, "request id:7 {"), events[0].Description)
	assert.Contains(t, events[0].Description, `"ping"`)

	assert.Equal(t, "20020", events[1].Host)
	assert.Equal(t, map[string]int{"20020": 1, "20021": 1}, events[1].Clock)
	assert.Equal(t, "receive request 7", events[1].Description)

	assert.Equal(t, "20020", events[2].Host)
	assert.Equal(t, map[string]int{"20020": 2, "20021": 1}, events[2].Clock)
	assert.True(t, strings.HasPrefix(events[2].Description, "reply id:42 response_to:7 {"), events[2].Description)

	assert.Equal(t, "20021", events[3].Host)
	assert.Equal(t, map[string]int{"20020": 2, "20021": 2}, events[3].Clock)
	assert.Equal(t, "receive reply 42", events[3].Description)
}

func TestSynthesizeSnapshotsAreIndependent(t *testing.T) {
	log := twoServerLog()
	request := message(54321, 20020, 7, 0, 0, bson.D{
		{Key: "ping", Value: int32(1)},
		{Key: "client", Value: bson.D{
			{Key: "application", Value: bson.D{
				{Key: "name", Value: "mongod"},
				{Key: "pid", Value: int32(1001)},
			}},
		}},
	})

	events := Synthesize(trace.Classify(&sliceSource{msgs: []*wire.MongoMessage{request}}, log), log)
	require.Len(t, events, 2)

	// Mutating one snapshot must not affect the other.
	events[1].Clock["20021"] = 99
	assert.Equal(t, 1, events[0].Clock["20021"])
}

func TestSynthesizeEventPairs(t *testing.T) {
	// Every message produces a send immediately followed by its receive,
	// and every clock hand stays within the known ports.
	log := twoServerLog()
	msgs := []*wire.MongoMessage{
		message(54321, 20020, 7, 0, 0, bson.D{
			{Key: "ping", Value: int32(1)},
			{Key: "client", Value: bson.D{
				{Key: "application", Value: bson.D{
					{Key: "name", Value: "mongod"},
					{Key: "pid", Value: int32(1001)},
				}},
			}},
		}),
		message(20020, 54321, 42, 7, time.Millisecond, bson.D{{Key: "ok", Value: float64(1)}}),
	}

	events := Synthesize(trace.Classify(&sliceSource{msgs: msgs}, log), log)
	require.Len(t, events, 4)

	for i := 0; i < len(events); i += 2 {
		send, receive := events[i], events[i+1]
		assert.GreaterOrEqual(t, send.Clock[send.Host], 1)
		assert.Equal(t, send.Clock[receive.Host]+1, receive.Clock[receive.Host])
		assert.LessOrEqual(t, send.Clock[send.Host], receive.Clock[send.Host])
		for _, e := range []Event{send, receive} {
			_, known := e.Clock[e.Host]
			assert.True(t, known)
		}
	}
}

func TestWrite(t *testing.T) {
	events := []Event{
		{
			Description: "request id:7 {\"ping\":1}",
			Host:        "20021",
			Clock:       map[string]int{"20020": 0, "20021": 1},
		},
		{
			Description: "receive request 7",
			Host:        "20020",
			Clock:       map[string]int{"20020": 1, "20021": 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, events))

	expected := `(?<host>\S*) (?<clock>\{.*\})\n(?<event>.*)` + "\n" +
		"\n" +
		`20021 {"20020":0,"20021":1}` + "\n" +
		`request id:7 {"ping":1}` + "\n" +
		`20020 {"20020":1,"20021":1}` + "\n" +
		"receive request 7\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteNoEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, InputFileRegex+"\n\n", buf.String())
}
