package wire

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoMessage is one decoded application-layer message.
type MongoMessage struct {
	// Src and Dst are the TCP ports of the two endpoints.
	Src int
	Dst int

	RequestID  int32
	ResponseTo int32

	// Body is the decoded command or reply document. Key order is
	// preserved; for a request the first key is the command name.
	Body bson.D

	Start time.Time
	End   time.Time

	// SortKey orders messages across capture files.
	SortKey SortKey

	// Filled in by the traffic classifier.
	RequesterPID int
	RequesterApp string
}

// SortKey is (capture start time, clusterTime.time, clusterTime.inc).
type SortKey struct {
	Start time.Time
	Time  uint32
	Inc   uint32
}

func (k SortKey) Less(other SortKey) bool {
	if !k.Start.Equal(other.Start) {
		return k.Start.Before(other.Start)
	}
	if k.Time != other.Time {
		return k.Time < other.Time
	}
	return k.Inc < other.Inc
}

// IsRequest reports whether the message is a request. The first requestId
// and responseTo on a connection are both 0, so the absence of an "ok" field
// is used as backup.
func (m *MongoMessage) IsRequest() bool {
	if m.ResponseTo != 0 {
		return false
	}
	_, hasOK := m.lookup("ok")
	return !hasOK
}

// CommandName returns the first key of a request body, or "" for a reply.
func (m *MongoMessage) CommandName() string {
	if !m.IsRequest() || len(m.Body) == 0 {
		return ""
	}
	return m.Body[0].Key
}

// SafeGet descends the decoded document tree along a dotted path such as
// "client.application.name" and returns the leaf, if present.
func (m *MongoMessage) SafeGet(path string) (interface{}, bool) {
	var doc interface{} = m.Body
	for {
		key := path
		rest := ""
		if i := strings.IndexByte(path, '.'); i >= 0 {
			key, rest = path[:i], path[i+1:]
		}
		next, ok := docLookup(doc, key)
		if !ok {
			return nil, false
		}
		if rest == "" {
			return next, true
		}
		doc, path = next, rest
	}
}

// SafeGetString is SafeGet narrowed to string leaves.
func (m *MongoMessage) SafeGetString(path string) (string, bool) {
	v, ok := m.SafeGet(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SafeGetInt is SafeGet narrowed to the BSON integer types.
func (m *MongoMessage) SafeGetInt(path string) (int, bool) {
	v, ok := m.SafeGet(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func (m *MongoMessage) lookup(key string) (interface{}, bool) {
	return docLookup(m.Body, key)
}

func docLookup(doc interface{}, key string) (interface{}, bool) {
	switch d := doc.(type) {
	case bson.D:
		for _, e := range d {
			if e.Key == key {
				return e.Value, true
			}
		}
	case bson.M:
		v, ok := d[key]
		return v, ok
	case map[string]interface{}:
		v, ok := d[key]
		return v, ok
	}
	return nil, false
}

// computeSortKey reads $clusterTime.clusterTime from the body, if present.
func (m *MongoMessage) computeSortKey() {
	m.SortKey = SortKey{Start: m.Start}
	v, ok := m.SafeGet("$clusterTime.clusterTime")
	if !ok {
		return
	}
	if ts, ok := v.(primitive.Timestamp); ok {
		m.SortKey.Time = ts.T
		m.SortKey.Inc = ts.I
	}
}
