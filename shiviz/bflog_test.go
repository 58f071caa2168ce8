package shiviz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajdavis/mongo-space-time/logfile"
)

func vecclockLine(t *testing.T, number int, doc map[string]interface{}) logfile.ParsedLine {
	t.Helper()
	// Round-trip through encoding/json so numbers have the types ParseFile
	// would produce.
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &payload))
	return logfile.ParsedLine{
		Number: number,
		Line:   &logfile.JsTestLine{Payload: logfile.JSONPayload(payload)},
	}
}

func TestEventsFromLog(t *testing.T) {
	lf := &logfile.LogFile{
		PIDToServer:  make(map[int]*logfile.Server),
		PortToServer: make(map[int]*logfile.Server),
	}
	lf.Lines = []logfile.ParsedLine{
		vecclockLine(t, 1, map[string]interface{}{
			"c":  "VECCLOCK",
			"id": 202007190,
			"attr": map[string]interface{}{
				"myPort":          20020,
				"nodeVectorClock": map[string]interface{}{"20020": 1, "20021": 0},
				"message":         "replSetHeartbeat",
			},
		}),
		vecclockLine(t, 2, map[string]interface{}{
			"c":  "VECCLOCK",
			"id": 202007191,
			"attr": map[string]interface{}{
				"myPort":          20021,
				"nodeVectorClock": map[string]interface{}{"20020": 1, "20021": 1},
			},
		}),
		// A different component is skipped.
		vecclockLine(t, 3, map[string]interface{}{
			"c":    "NETWORK",
			"id":   51800,
			"attr": map[string]interface{}{},
		}),
		// An unexpected VECCLOCK id is skipped with a warning.
		vecclockLine(t, 4, map[string]interface{}{
			"c":  "VECCLOCK",
			"id": 999,
			"attr": map[string]interface{}{
				"myPort":          20020,
				"nodeVectorClock": map[string]interface{}{"20020": 2},
			},
		}),
	}

	events := EventsFromLog(lf)
	require.Len(t, events, 2)

	assert.Equal(t, "20020", events[0].Host)
	assert.Equal(t, map[string]int{"20020": 1, "20021": 0}, events[0].Clock)
	assert.Equal(t, `Send {"20020":1,"20021":0} replSetHeartbeat`, events[0].Description)

	assert.Equal(t, "20021", events[1].Host)
	assert.Equal(t, `Receive a node vector clock {"20020":1,"20021":1}`, events[1].Description)
}
