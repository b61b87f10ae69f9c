package protocol

import (
	"FlowSpectra/internal/core/model"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ipv6HeaderLength is added to the IPv6 payload length to get the total length.
const ipv6HeaderLength = 40

// ParsePacket extracts the header fields the analyzer needs from a decoded packet.
// It never fails: non-IP frames are reported by frame type, and TCP/UDP packets
// whose transport header cannot be read carry a DecodeSkip.
func ParsePacket(packet gopacket.Packet) *model.PacketInfo {
	info := &model.PacketInfo{}

	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		ts := meta.Timestamp
		info.Timestamp = float64(ts.Unix()) + float64(ts.Nanosecond())/1e9
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		info.IsIP = true
		info.Protocol = uint8(ip.Protocol)
		info.SrcAddr = ip.SrcIP.String()
		info.DstAddr = ip.DstIP.String()
		info.Length = uint32(ip.Length)
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		info.IsIP = true
		info.Protocol = uint8(upperProtocol(packet, ip.NextHeader))
		info.SrcAddr = ip.SrcIP.String()
		info.DstAddr = ip.DstIP.String()
		info.Length = uint32(ip.Length) + ipv6HeaderLength
	} else {
		info.FrameType = frameType(packet)
		return info
	}

	if !info.IsTransport() {
		return info
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		info.SrcPort = uint16(tcp.SrcPort)
		info.DstPort = uint16(tcp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		info.SrcPort = uint16(udp.SrcPort)
		info.DstPort = uint16(udp.DstPort)
	} else {
		info.Skip = &model.DecodeSkip{Reason: transportSkipReason(packet, info.Protocol)}
	}

	return info
}

// upperProtocol follows the IPv6 extension header chain to the protocol of
// the first upper-layer header.
func upperProtocol(packet gopacket.Packet, next layers.IPProtocol) layers.IPProtocol {
	for _, l := range packet.Layers() {
		switch ext := l.(type) {
		case *layers.IPv6HopByHop:
			next = ext.NextHeader
		case *layers.IPv6Routing:
			next = ext.NextHeader
		case *layers.IPv6Fragment:
			next = ext.NextHeader
		case *layers.IPv6Destination:
			next = ext.NextHeader
		}
	}
	return next
}

// frameType names a non-IP frame by the layer carried inside it.
func frameType(packet gopacket.Packet) string {
	if l := packet.Layer(layers.LayerTypeEthernet); l != nil {
		eth := l.(*layers.Ethernet)
		next := eth.NextLayerType()
		if next != gopacket.LayerTypeZero && next != gopacket.LayerTypePayload {
			return next.String()
		}
		return eth.EthernetType.String()
	}
	if ls := packet.Layers(); len(ls) > 0 {
		return ls[0].LayerType().String()
	}
	return "Unknown"
}

func transportSkipReason(packet gopacket.Packet, proto uint8) string {
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return fmt.Sprintf("protocol %d: %v", proto, errLayer.Error())
	}
	return fmt.Sprintf("protocol %d: transport header not decoded", proto)
}
