package logfile

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Test logs interleave the output of every server in the cluster. Lines of
// interest look like
//
//	[js_test:NAME] 2020-07-19T16:58:23.074+0000 d20020| {...}
//
// where the host id is one of d (mongod), s (mongos) or m (the shell),
// followed by the server's listening port. The payload is a structured JSON
// log record, or free text for older-style messages.

const jsTestPrefix = "[js_test:"

const timestampLayout = "2006-01-02T15:04:05.000-0700"

// HostID identifies which cluster member emitted a log line.
type HostID struct {
	Kind byte // 'd', 's' or 'm'
	Port int
}

// Payload is the tagged payload of a test log line: JSONPayload when the
// message parses as a JSON object, TextPayload otherwise.
type Payload interface {
	isPayload()
}

type JSONPayload map[string]interface{}

type TextPayload string

func (JSONPayload) isPayload() {}
func (TextPayload) isPayload() {}

// Get descends nested JSON objects along path; it returns nil when any step
// is missing or not an object.
func (p JSONPayload) Get(path ...string) interface{} {
	var v interface{} = map[string]interface{}(p)
	for _, step := range path {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		if v, ok = m[step]; !ok {
			return nil
		}
	}
	return v
}

// AsInt narrows the number types encoding/json produces.
func AsInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// Line is the tagged variant over log line shapes: *JsTestLine for lines
// emitted by the test runner on behalf of a server, *OtherLine for
// everything else.
type Line interface {
	isLine()
}

// JsTestLine is one "[js_test:...]" line.
type JsTestLine struct {
	TestName  string
	Timestamp time.Time
	HostID    HostID
	Payload   Payload
}

// OtherLine is any line that does not match the js_test shape.
type OtherLine struct {
	Text string
}

func (*JsTestLine) isLine() {}
func (*OtherLine) isLine()  {}

// parseLine classifies one log line. Lines that fail the js_test shape are
// OtherLines, never errors.
func parseLine(s string) Line {
	if !strings.HasPrefix(s, jsTestPrefix) {
		return &OtherLine{Text: s}
	}
	name, rest, ok := strings.Cut(s[len(jsTestPrefix):], "] ")
	if !ok {
		return &OtherLine{Text: s}
	}

	rest = strings.TrimLeft(rest, " ")
	tsToken, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return &OtherLine{Text: s}
	}
	ts, err := time.Parse(timestampLayout, tsToken)
	if err != nil {
		return &OtherLine{Text: s}
	}

	rest = strings.TrimLeft(rest, " ")
	hostID, rest, err := parseHostID(rest)
	if err != nil {
		return &OtherLine{Text: s}
	}

	return &JsTestLine{
		TestName:  name,
		Timestamp: ts,
		HostID:    hostID,
		Payload:   parsePayload(strings.TrimLeft(rest, " ")),
	}
}

// parseHostID consumes a "d20020|" style token from the front of s.
func parseHostID(s string) (HostID, string, error) {
	if len(s) == 0 {
		return HostID{}, s, errors.New("empty host id")
	}
	kind := s[0]
	if kind != 'd' && kind != 's' && kind != 'm' {
		return HostID{}, s, errors.Errorf("bad host id kind %q", kind)
	}
	digits, rest, ok := strings.Cut(s[1:], "|")
	if !ok {
		return HostID{}, s, errors.New("host id missing terminator")
	}
	port, err := strconv.Atoi(digits)
	if err != nil {
		return HostID{}, s, errors.Wrap(err, "bad host id port")
	}
	return HostID{Kind: kind, Port: port}, rest, nil
}

// parsePayload tries the message as a JSON object extending to the end of
// the line, falling back to raw text. A truncated object ("{..." without the
// closing brace) is text, not an error.
func parsePayload(s string) Payload {
	if strings.HasPrefix(s, "{") {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(s), &doc); err == nil {
			return JSONPayload(doc)
		}
	}
	return TextPayload(s)
}
