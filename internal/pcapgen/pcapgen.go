// Package pcapgen builds synthetic Ethernet frames and writes them as pcap files.
// It backs scripts/pcapgen and the capture fixtures used by tests.
package pcapgen

import (
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapshotLen = 65536

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// PacketSpec describes one IP packet to synthesize.
type PacketSpec struct {
	Protocol    uint8 // 1, 6 or 17
	SrcIP       string
	DstIP       string
	SrcPort     uint16
	DstPort     uint16
	PayloadSize int
}

// Frame is a serialized frame with its capture time.
type Frame struct {
	Timestamp time.Time
	Data      []byte
}

// Build serializes spec into an Ethernet frame. Addresses containing a colon
// produce an IPv6 packet.
func Build(spec PacketSpec) ([]byte, error) {
	srcIP, dstIP := net.ParseIP(spec.SrcIP), net.ParseIP(spec.DstIP)
	if srcIP == nil || dstIP == nil {
		return nil, fmt.Errorf("invalid address pair %q -> %q", spec.SrcIP, spec.DstIP)
	}

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	var network gopacket.SerializableLayer
	var netLayer gopacket.NetworkLayer
	if srcIP.To4() != nil && dstIP.To4() != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{
			SrcIP:    srcIP.To4(),
			DstIP:    dstIP.To4(),
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocol(spec.Protocol),
		}
		network, netLayer = ip, ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			SrcIP:      srcIP.To16(),
			DstIP:      dstIP.To16(),
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocol(spec.Protocol),
		}
		network, netLayer = ip, ip
	}

	var transport gopacket.SerializableLayer
	switch spec.Protocol {
	case 6:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(spec.SrcPort),
			DstPort: layers.TCPPort(spec.DstPort),
			ACK:     true,
			Window:  14600,
		}
		if err := tcp.SetNetworkLayerForChecksum(netLayer); err != nil {
			return nil, err
		}
		transport = tcp
	case 17:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(spec.SrcPort),
			DstPort: layers.UDPPort(spec.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(netLayer); err != nil {
			return nil, err
		}
		transport = udp
	case 1:
		transport = &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	default:
		return nil, fmt.Errorf("unsupported protocol %d", spec.Protocol)
	}

	return serialize(eth, network, transport, gopacket.Payload(make([]byte, spec.PayloadSize)))
}

// ARP serializes an ARP request frame.
func ARP(senderIP, targetIP string) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: net.ParseIP(senderIP).To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    net.ParseIP(targetIP).To4(),
	}
	return serialize(eth, arp)
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, fmt.Errorf("failed to serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}

// Write emits frames as a classic Ethernet pcap stream.
func Write(w io.Writer, frames []Frame) error {
	pcapWriter := pcapgo.NewWriter(w)
	if err := pcapWriter.WriteFileHeader(snapshotLen, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}
	for _, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     f.Timestamp,
			CaptureLength: len(f.Data),
			Length:        len(f.Data),
		}
		if err := pcapWriter.WritePacket(ci, f.Data); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}
	return nil
}

// WriteFile writes frames to a new pcap file at path.
func WriteFile(path string, frames []Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(f, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FlowPlan describes the packets of one synthetic flow.
type FlowPlan struct {
	Spec     PacketSpec
	ARP      bool // emit ARP requests from Spec.SrcIP to Spec.DstIP instead
	Packets  int
	Start    time.Duration // offset of the first packet from the base time
	Interval time.Duration
	GapAfter int // number of packets sent before an idle gap; 0 for none
	Gap      time.Duration
}

// Frames renders plans into frames ordered by timestamp.
func Frames(base time.Time, plans []FlowPlan) ([]Frame, error) {
	var frames []Frame
	for _, plan := range plans {
		var data []byte
		var err error
		if plan.ARP {
			data, err = ARP(plan.Spec.SrcIP, plan.Spec.DstIP)
		} else {
			data, err = Build(plan.Spec)
		}
		if err != nil {
			return nil, err
		}

		ts := base.Add(plan.Start)
		for i := 0; i < plan.Packets; i++ {
			if i > 0 {
				ts = ts.Add(plan.Interval)
				if plan.GapAfter > 0 && i == plan.GapAfter {
					ts = ts.Add(plan.Gap)
				}
			}
			frames = append(frames, Frame{Timestamp: ts, Data: data})
		}
	}
	slices.SortStableFunc(frames, func(a, b Frame) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return frames, nil
}
