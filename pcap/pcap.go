package pcap

import (
	"io"
	"runtime/debug"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/reassembly"
	"github.com/pkg/errors"

	"github.com/ajdavis/mongo-space-time/printer"
)

// Maximum size of gopacket reassembly buffers, per capture file.
//
// A gopacket page is 1900 bytes.
// We want to cap the total memory usage at about 200MB = 105263 pages
var MaxBufferedPagesTotal = 100_000

// Maximum number of reassembly pages held for a single connection. A capture
// with a long gap in one connection should not starve the others.
var MaxBufferedPagesPerConnection = 4_000

// Internal implementation of reassembly.AssemblerContext carrying the
// packet's capture info.
type captureContext struct {
	ci gopacket.CaptureInfo
}

func (ctx *captureContext) GetCaptureInfo() gopacket.CaptureInfo {
	return ctx.ci
}

// ReadStreams reassembles the TCP streams recorded in the capture file at
// path. Streams are returned in the order their first segment appears in the
// capture; iterating a stream's Messages yields them in capture order.
// Segments without payload contribute no message data. Malformed packets are
// dropped silently.
func ReadStreams(path string) ([]*TCPStream, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture file %s", path)
	}
	defer handle.Close()

	fact := newTCPStreamFactory()
	assembler := newAssembler(fact)

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for {
		packet, err := source.NextPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			printer.V(4).Debugf("skipping malformed packet in %s: %v\n", path, err)
			continue
		}
		assemblePacket(assembler, packet)
	}

	// Flushes and closes all remaining connections so every stream delivers
	// the data it has accumulated. Offline captures have no more packets
	// coming, so nothing is lost by closing early connections too.
	assembler.FlushAll()

	return fact.streams, nil
}

func newAssembler(fact *tcpStreamFactory) *reassembly.Assembler {
	pool := reassembly.NewStreamPool(fact)
	assembler := reassembly.NewAssembler(pool)

	// Override the assembler configuration. (This is the documented way to
	// change it.)
	assembler.AssemblerOptions.MaxBufferedPagesTotal = MaxBufferedPagesTotal
	assembler.AssemblerOptions.MaxBufferedPagesPerConnection = MaxBufferedPagesPerConnection
	return assembler
}

// assemblePacket feeds one captured packet to the TCP assembler. Packets
// that are not TCP over IP are ignored.
func assemblePacket(assembler *reassembly.Assembler, packet gopacket.Packet) {
	defer func() {
		// If we panic during packet handling, do not crash the program.
		// Instead log the error and backtrace and move on to the next
		// packet.
		if err := recover(); err != nil {
			printer.Errorf("Panic during packet handling: %v\n%v\n", err, string(debug.Stack()))
		}
	}()

	if packet.NetworkLayer() == nil {
		printer.V(4).Debugf("unusable packet without network layer\n")
		return
	}

	tcp, ok := packet.TransportLayer().(*layers.TCP)
	if !ok {
		printer.V(4).Debugf("skipping non-TCP packet\n")
		return
	}

	assembler.AssembleWithContext(packet.NetworkLayer().NetworkFlow(), tcp, &captureContext{
		ci: packet.Metadata().CaptureInfo,
	})
}
