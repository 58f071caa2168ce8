package trace

import (
	"strings"

	"github.com/ajdavis/mongo-space-time/logfile"
	"github.com/ajdavis/mongo-space-time/printer"
	"github.com/ajdavis/mongo-space-time/wire"
)

// client is a peer that introduced itself with an isMaster-style handshake.
type client struct {
	pid             int
	applicationName string
}

// Classify filters upstream down to intra-cluster traffic and tags each
// surviving message with the pid of the server that issued the request.
//
// Traffic captures include the requests a server receives and the replies it
// sends; the identity of the requester is learned from the handshake that
// opened the connection, and cross-checked against the log indices so every
// emitted message maps to known servers on both sides.
func Classify(upstream wire.Source, log *logfile.LogFile) wire.Source {
	return &classifier{
		upstream: upstream,
		log:      log,
		known:    make(map[int]client),
		pending:  make(map[int32]*wire.MongoMessage),
	}
}

type classifier struct {
	upstream wire.Source
	log      *logfile.LogFile

	// known maps a source port to the handshake identity seen on it. A
	// reused port overwrites the previous entry.
	known map[int]client

	// pending holds classified requests awaiting their reply.
	pending map[int32]*wire.MongoMessage

	done bool
}

func (c *classifier) Next() *wire.MongoMessage {
	if c.done {
		return nil
	}
	for {
		msg := c.upstream.Next()
		if msg == nil {
			c.done = true
			if n := len(c.pending); n > 0 {
				printer.Infof("%d requests without replies\n", n)
			}
			return nil
		}
		if msg.IsRequest() {
			if out := c.classifyRequest(msg); out != nil {
				return out
			}
		} else {
			if out := c.classifyReply(msg); out != nil {
				return out
			}
		}
	}
}

func (c *classifier) classifyRequest(msg *wire.MongoMessage) *wire.MongoMessage {
	c.learnHandshake(msg)

	cl, ok := c.known[msg.Src]
	if !ok {
		// Request from a non-server.
		return nil
	}
	if _, ok := c.log.PortToServer[msg.Dst]; !ok {
		printer.V(4).Debugf("request %d to unknown port %d\n", msg.RequestID, msg.Dst)
		return nil
	}
	msg.RequesterPID = cl.pid
	msg.RequesterApp = cl.applicationName
	c.pending[msg.RequestID] = msg
	return msg
}

func (c *classifier) classifyReply(msg *wire.MongoMessage) *wire.MongoMessage {
	request, ok := c.pending[msg.ResponseTo]
	if !ok {
		// Reply to a non-server.
		return nil
	}
	if _, ok := c.log.PortToServer[msg.Src]; !ok {
		printer.V(4).Debugf("reply %d from unknown port %d\n", msg.RequestID, msg.Src)
		return nil
	}
	delete(c.pending, msg.ResponseTo)
	msg.RequesterPID = request.RequesterPID
	msg.RequesterApp = request.RequesterApp
	return msg
}

// learnHandshake records the requester's identity when the message is an
// isMaster-style handshake carrying client metadata. Only cluster members —
// application name ending in "mongod" or "mongos", pid present in the log —
// are admitted; a reused source port overwrites the previous identity.
func (c *classifier) learnHandshake(msg *wire.MongoMessage) {
	name, ok := msg.SafeGetString("client.application.name")
	if !ok {
		return
	}
	if !strings.HasSuffix(name, "mongod") && !strings.HasSuffix(name, "mongos") {
		return
	}
	pid, ok := msg.SafeGetInt("client.application.pid")
	if !ok {
		return
	}
	if _, ok := c.log.PIDToServer[pid]; !ok {
		printer.V(4).Debugf("handshake from %q pid %d absent from the log\n", name, pid)
		return
	}
	c.known[msg.Src] = client{pid: pid, applicationName: name}
}
