package logfile

import (
	"bufio"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/ajdavis/mongo-space-time/printer"
)

// Structured log record ids the parser extracts identity from.
const (
	// "initAndListen" — a server reports its pid and listening port.
	idInitAndListen = 4615611
	// "client metadata" — a server logs the handshake of an incoming
	// connection, including the remote process's pid.
	idClientMetadata = 51800
)

// Server is one cluster member identified in the log.
type Server struct {
	PID  int
	Port int

	// Connections maps a connection id such as "conn123", owned by this
	// server, to the remote peer's listening port.
	Connections map[string]int
}

// ParsedLine retains a structured line together with its position in the
// file, for downstream inspection.
type ParsedLine struct {
	Number int
	Line   *JsTestLine
}

// LogFile is the identity state parsed out of one test log. Both indices
// share the same *Server values; a port reuse rebinds both at once.
type LogFile struct {
	PIDToServer  map[int]*Server
	PortToServer map[int]*Server

	// Lines holds every successfully parsed structured line in file order.
	Lines []ParsedLine
}

// ServerPorts returns the known listening ports in ascending order.
func (lf *LogFile) ServerPorts() []int {
	ports := make([]int, 0, len(lf.PortToServer))
	for port := range lf.PortToServer {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

// addServer installs a server in both indices. A later initAndListen with
// the same port is a restart reusing the port: the old server is unbound
// from both indices before the new one is installed.
func (lf *LogFile) addServer(pid, port int) {
	if old, ok := lf.PortToServer[port]; ok {
		delete(lf.PIDToServer, old.PID)
	}
	if old, ok := lf.PIDToServer[pid]; ok {
		delete(lf.PortToServer, old.Port)
	}
	s := &Server{PID: pid, Port: port, Connections: make(map[string]int)}
	lf.PIDToServer[pid] = s
	lf.PortToServer[port] = s
}

// ParseFile reads the log at path line by line. Individual lines that fail
// to parse are logged and skipped; they never abort the file.
func ParseFile(path string) (*LogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", path)
	}
	defer f.Close()

	lf := &LogFile{
		PIDToServer:  make(map[int]*Server),
		PortToServer: make(map[int]*Server),
	}

	scanner := bufio.NewScanner(f)
	// Log lines carry whole BSON documents; the default token limit is too
	// small.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineno := 0
	for scanner.Scan() {
		lineno++
		line, ok := parseLine(scanner.Text()).(*JsTestLine)
		if !ok {
			continue
		}
		payload, ok := line.Payload.(JSONPayload)
		if !ok {
			continue
		}
		lf.Lines = append(lf.Lines, ParsedLine{Number: lineno, Line: line})
		if err := lf.applyRecord(line, payload); err != nil {
			printer.Warningf("log line %d: %v\n", lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading log file %s", path)
	}

	return lf, nil
}

// applyRecord folds one structured record into the identity indices.
func (lf *LogFile) applyRecord(line *JsTestLine, payload JSONPayload) error {
	id, ok := AsInt(payload.Get("id"))
	if !ok {
		return nil
	}

	switch id {
	case idInitAndListen:
		pid, ok := AsInt(payload.Get("attr", "pid"))
		if !ok {
			return errors.New("initAndListen record without attr.pid")
		}
		port, ok := AsInt(payload.Get("attr", "port"))
		if !ok {
			return errors.New("initAndListen record without attr.port")
		}
		lf.addServer(pid, port)

	case idClientMetadata:
		connID, ok := payload.Get("ctx").(string)
		if !ok {
			return errors.New("client metadata record without ctx")
		}
		pid, ok := AsInt(payload.Get("attr", "doc", "application", "pid"))
		if !ok {
			// Most clients are not cluster members and carry no pid.
			return nil
		}
		remote, ok := lf.PIDToServer[pid]
		if !ok {
			return nil
		}
		owner, ok := lf.PortToServer[line.HostID.Port]
		if !ok {
			return errors.Errorf("client metadata for unknown server port %d", line.HostID.Port)
		}
		owner.Connections[connID] = remote.Port
	}

	return nil
}
