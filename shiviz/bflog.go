package shiviz

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ajdavis/mongo-space-time/logfile"
	"github.com/ajdavis/mongo-space-time/printer"
)

// Patched servers that maintain a node vector clock themselves log it under
// component VECCLOCK with these record ids.
const (
	// Sending the vector clock with a request or reply.
	idVectorClockSend = 202007190
	// Receiving the vector clock with a request or reply.
	idVectorClockReceive = 202007191
)

// EventsFromLog extracts visualizer events from the server-maintained node
// vector clocks in a structured log. No packet captures are involved: each
// VECCLOCK record already carries a complete clock snapshot, so the events
// translate line for line.
func EventsFromLog(lf *logfile.LogFile) []Event {
	var events []Event
	for _, parsed := range lf.Lines {
		payload, ok := parsed.Line.Payload.(logfile.JSONPayload)
		if !ok {
			continue
		}
		if c, _ := payload.Get("c").(string); c != "VECCLOCK" {
			// Not the nodeVectorClock log component.
			continue
		}
		id, ok := logfile.AsInt(payload.Get("id"))
		if !ok {
			continue
		}
		port, ok := logfile.AsInt(payload.Get("attr", "myPort"))
		if !ok {
			printer.Warningf("log line %d: VECCLOCK record without attr.myPort\n", parsed.Number)
			continue
		}
		clockDoc, ok := payload.Get("attr", "nodeVectorClock").(map[string]interface{})
		if !ok {
			printer.Warningf("log line %d: VECCLOCK record without attr.nodeVectorClock\n", parsed.Number)
			continue
		}
		clock := make(map[string]int, len(clockDoc))
		for host, t := range clockDoc {
			if n, ok := logfile.AsInt(t); ok {
				clock[host] = n
			}
		}

		var description string
		switch id {
		case idVectorClockSend:
			message, _ := payload.Get("attr", "message").(string)
			description = fmt.Sprintf("Send %s %s", clockJSON(clock), message)
		case idVectorClockReceive:
			description = fmt.Sprintf("Receive a node vector clock %s", clockJSON(clock))
		default:
			printer.Warningf("log line %d: unexpected id %d in component VECCLOCK\n", parsed.Number, id)
			continue
		}

		events = append(events, Event{
			Description: description,
			Host:        strconv.Itoa(port),
			Clock:       clock,
		})
	}
	return events
}

func clockJSON(clock map[string]int) string {
	b, err := json.Marshal(clock)
	if err != nil {
		return fmt.Sprintf("%v", clock)
	}
	return string(b)
}
