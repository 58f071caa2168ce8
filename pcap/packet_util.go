package pcap

import (
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Helpers for building synthetic packets in tests.

func createPacketLayers(src, dst net.IP, srcPort, dstPort int, seq uint32) (*layers.Ethernet, *layers.IPv4, *layers.TCP) {
	ethernetLayer := &layers.Ethernet{
		EthernetType: layers.EthernetTypeIPv4,
		SrcMAC:       net.HardwareAddr{0xFF, 0xAA, 0xFA, 0xAA, 0xFF, 0xAA},
		DstMAC:       net.HardwareAddr{0xBD, 0xBD, 0xBD, 0xBD, 0xBD, 0xBD},
	}
	ipLayer := &layers.IPv4{
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src,
		DstIP:    dst,
	}
	tcpLayer := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     seq,
	}
	return ethernetLayer, ipLayer, tcpLayer
}

func serializePacket(ls ...gopacket.SerializableLayer) gopacket.Packet {
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	gopacket.SerializeLayers(buffer, opts, ls...)
	return gopacket.NewPacket(buffer.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func CreateTCPSYN(src, dst net.IP, srcPort, dstPort int, seq uint32, ts time.Time) gopacket.Packet {
	ethernetLayer, ipLayer, tcpLayer := createPacketLayers(src, dst, srcPort, dstPort, seq)
	tcpLayer.SYN = true
	pkt := serializePacket(ethernetLayer, ipLayer, tcpLayer)
	pkt.Metadata().CaptureInfo.Timestamp = ts
	return pkt
}

func CreateTCPSYNAndACK(src, dst net.IP, srcPort, dstPort int, seq uint32, ts time.Time) gopacket.Packet {
	ethernetLayer, ipLayer, tcpLayer := createPacketLayers(src, dst, srcPort, dstPort, seq)
	tcpLayer.SYN = true
	tcpLayer.ACK = true
	pkt := serializePacket(ethernetLayer, ipLayer, tcpLayer)
	pkt.Metadata().CaptureInfo.Timestamp = ts
	return pkt
}

// CreatePacket builds a TCP data packet with the given payload and sequence
// number, stamped with the given capture time.
func CreatePacket(src, dst net.IP, srcPort, dstPort int, payload []byte, seq uint32, ts time.Time) gopacket.Packet {
	ethernetLayer, ipLayer, tcpLayer := createPacketLayers(src, dst, srcPort, dstPort, seq)
	pkt := serializePacket(ethernetLayer, ipLayer, tcpLayer, gopacket.Payload(payload))
	pkt.Metadata().CaptureInfo.Timestamp = ts
	return pkt
}

// CreateUDPPacket builds a UDP packet; the reassembler must ignore it.
func CreateUDPPacket(src, dst net.IP, srcPort, dstPort int, payload []byte, ts time.Time) gopacket.Packet {
	ethernetLayer := &layers.Ethernet{
		EthernetType: layers.EthernetTypeIPv4,
		SrcMAC:       net.HardwareAddr{0xFF, 0xAA, 0xFA, 0xAA, 0xFF, 0xAA},
		DstMAC:       net.HardwareAddr{0xBD, 0xBD, 0xBD, 0xBD, 0xBD, 0xBD},
	}
	ipLayer := &layers.IPv4{
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src,
		DstIP:    dst,
	}
	udpLayer := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	pkt := serializePacket(ethernetLayer, ipLayer, udpLayer, gopacket.Payload(payload))
	pkt.Metadata().CaptureInfo.Timestamp = ts
	return pkt
}
