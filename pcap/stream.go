package pcap

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
	"github.com/google/uuid"
)

// RawMessage is one unidirectional application-layer byte sequence
// reconstructed from one or more TCP segments. Segments captured in the same
// direction with no intervening reply are coalesced into a single message;
// End advances as segments are appended.
type RawMessage struct {
	Src   string // "ip:port"
	Dst   string // "ip:port"
	Data  []byte
	Start time.Time
	End   time.Time
}

// TCPStream is one reassembled connection. The first segment observed for
// the connection determines which peer is labelled the client. Messages are
// in capture order and alternate direction.
type TCPStream struct {
	ID       uuid.UUID
	Client   string
	Server   string
	Messages []*RawMessage
}

func (t *TCPStream) add(src, dst string, data []byte, ts time.Time) {
	if last := t.lastMessage(); last != nil && last.Src == src {
		last.Data = append(last.Data, data...)
		if ts.After(last.End) {
			last.End = ts
		}
		return
	}
	t.Messages = append(t.Messages, &RawMessage{
		Src:   src,
		Dst:   dst,
		Data:  data,
		Start: ts,
		End:   ts,
	})
}

func (t *TCPStream) lastMessage() *RawMessage {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

// tcpStreamFactory implements reassembly.StreamFactory. It retains the
// streams it creates, in the order their first segment was captured.
type tcpStreamFactory struct {
	streams []*TCPStream
}

func newTCPStreamFactory() *tcpStreamFactory {
	return &tcpStreamFactory{}
}

func (fact *tcpStreamFactory) New(netFlow, tcpFlow gopacket.Flow, _ *layers.TCP, _ reassembly.AssemblerContext) reassembly.Stream {
	// The assembler hands us the flow of the connection's first packet, so
	// its source is the client.
	record := &TCPStream{
		ID:     uuid.New(),
		Client: endpointString(netFlow.Src(), tcpFlow.Src()),
		Server: endpointString(netFlow.Dst(), tcpFlow.Dst()),
	}
	fact.streams = append(fact.streams, record)
	return &tcpStream{record: record}
}

func endpointString(host, port gopacket.Endpoint) string {
	return fmt.Sprintf("%s:%s", host, port)
}

// tcpStream receives reassembled segment data for both directions of one
// connection and folds it into the exported TCPStream record.
type tcpStream struct {
	record *TCPStream

	// Capture time of the most recent accepted segment, used when the
	// assembler delivers flushed data without capture info.
	lastSeen time.Time
}

func (s *tcpStream) Accept(_ *layers.TCP, ci gopacket.CaptureInfo, _ reassembly.TCPFlowDirection, _ reassembly.Sequence, start *bool, _ reassembly.AssemblerContext) bool {
	// Always force the TCP stream to start because we cannot guarantee that
	// the capture includes the SYN packet. Without the forced start, the
	// stream would be held up by the assembler forever.
	*start = true

	if ci.Timestamp.After(s.lastSeen) {
		s.lastSeen = ci.Timestamp
	}

	// Accept everything, even packets that might violate the TCP state
	// machine; the assembler still guarantees in-order delivery per
	// direction.
	return true
}

func (s *tcpStream) ReassembledSG(sg reassembly.ScatterGather, ac reassembly.AssemblerContext) {
	length, _ := sg.Lengths()
	if length == 0 {
		return
	}

	// Fetch may return a buffer owned by the assembler.
	data := make([]byte, length)
	copy(data, sg.Fetch(length))

	ts := sg.CaptureInfo(0).Timestamp
	if ts.IsZero() && ac != nil {
		ts = ac.GetCaptureInfo().Timestamp
	}
	if ts.IsZero() {
		ts = s.lastSeen
	}

	src, dst := s.record.Client, s.record.Server
	if dir, _, _, _ := sg.Info(); dir == reassembly.TCPDirServerToClient {
		src, dst = dst, src
	}
	s.record.add(src, dst, data, ts)
}

func (s *tcpStream) ReassemblyComplete(_ reassembly.AssemblerContext) bool {
	// Remove the connection from the pool.
	return true
}
