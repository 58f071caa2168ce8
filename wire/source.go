package wire

import (
	"github.com/ajdavis/mongo-space-time/pcap"
	"github.com/ajdavis/mongo-space-time/printer"
)

// A Source yields decoded messages, pull-driven. Next returns nil once the
// source is exhausted.
type Source interface {
	Next() *MongoMessage
}

// FileMessages reassembles the capture file at path and returns a Source
// over its decoded messages, stream by stream in the order the streams first
// appear, messages in capture order within each stream.
func (d *Decoder) FileMessages(path string) (Source, error) {
	streams, err := pcap.ReadStreams(path)
	if err != nil {
		return nil, err
	}
	return d.StreamMessages(streams...), nil
}

// StreamMessages returns a Source over the raw messages of streams. Raw
// messages are decoded one at a time as the source is pulled.
func (d *Decoder) StreamMessages(streams ...*pcap.TCPStream) Source {
	return &streamSource{decoder: d, streams: streams}
}

type streamSource struct {
	decoder *Decoder
	streams []*pcap.TCPStream
	msgIdx  int
}

func (s *streamSource) Next() *MongoMessage {
	for len(s.streams) > 0 {
		stream := s.streams[0]
		for s.msgIdx < len(stream.Messages) {
			raw := stream.Messages[s.msgIdx]
			s.msgIdx++
			msg, err := s.decoder.Decode(raw)
			if err != nil {
				printer.Warningf("skipping message %s -> %s: %v\n", raw.Src, raw.Dst, err)
				continue
			}
			if msg == nil {
				// An opcode the event trace does not cover.
				continue
			}
			return msg
		}
		s.streams = s.streams[1:]
		s.msgIdx = 0
	}
	return nil
}
