// Package shiviz folds a classified message trace into the input format of
// the ShiViz distributed-system visualizer.
//
// https://github.com/DistributedClocks/shiviz/wiki
// ShiViz parses the log using a user-specified regular expression. The
// regular expression must contain three capture groups:
//
//	event: The event message
//	host:  The host / process for the event
//	clock: The vector clock, in JSON {"host": timestamp} format. The local
//	       host must be represented in the vector clock.
//
// We use the server request or reply as "event" and the port number for
// "host".
package shiviz

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajdavis/mongo-space-time/logfile"
	"github.com/ajdavis/mongo-space-time/printer"
	"github.com/ajdavis/mongo-space-time/wire"
)

// Event is one visualizer event: a send or receive observed at a host.
type Event struct {
	Description string
	Host        string
	Clock       map[string]int
}

// Synthesize walks the classified message sequence and emits a send and a
// receive event per message, each with its own snapshot of the synthetic
// vector clock. The clock has a hand for every server port in the log,
// starting at 0.
func Synthesize(msgs wire.Source, log *logfile.LogFile) []Event {
	clock := make(map[string]int, len(log.PortToServer))
	for port := range log.PortToServer {
		// ShiViz needs the clock hands to be strings.
		clock[strconv.Itoa(port)] = 0
	}

	var events []Event
	for msg := msgs.Next(); msg != nil; msg = msgs.Next() {
		var srcServer, dstServer *logfile.Server
		if msg.IsRequest() {
			srcServer = log.PIDToServer[msg.RequesterPID]
			dstServer = log.PortToServer[msg.Dst]
		} else {
			// The replying server is the source, the requester the
			// destination.
			srcServer = log.PortToServer[msg.Src]
			dstServer = log.PIDToServer[msg.RequesterPID]
		}
		if srcServer == nil || dstServer == nil {
			printer.Warningf("message %d does not map to known servers\n", msg.RequestID)
			continue
		}

		direction := "reply"
		responseTo := fmt.Sprintf(" response_to:%d", msg.ResponseTo)
		if msg.IsRequest() {
			direction = "request"
			responseTo = ""
		}

		srcHost := strconv.Itoa(srcServer.Port)
		clock[srcHost]++
		events = append(events, Event{
			Description: fmt.Sprintf("%s id:%d%s %s", direction, msg.RequestID, responseTo, bodyJSON(msg.Body)),
			Host:        srcHost,
			Clock:       snapshot(clock),
		})

		dstHost := strconv.Itoa(dstServer.Port)
		clock[dstHost]++
		events = append(events, Event{
			Description: fmt.Sprintf("receive %s %d", direction, msg.RequestID),
			Host:        dstHost,
			Clock:       snapshot(clock),
		})
	}
	return events
}

// snapshot copies the clock so later increments do not leak into events
// already emitted.
func snapshot(clock map[string]int) map[string]int {
	c := make(map[string]int, len(clock))
	for host, t := range clock {
		c[host] = t
	}
	return c
}

func bodyJSON(body bson.D) string {
	if body == nil {
		body = bson.D{}
	}
	b, err := bson.MarshalExtJSON(body, false, false)
	if err != nil {
		return fmt.Sprintf("%v", body)
	}
	return string(b)
}
