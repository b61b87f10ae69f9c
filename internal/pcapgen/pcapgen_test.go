package pcapgen

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func TestFrames_GapAndOrder(t *testing.T) {
	base := time.Unix(1500000000, 0)
	plans := []FlowPlan{
		{
			Spec:     PacketSpec{Protocol: 6, SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 1000, DstPort: 80},
			Packets:  4,
			Interval: time.Second,
			GapAfter: 2,
			Gap:      time.Minute,
		},
		{
			Spec:    PacketSpec{SrcIP: "10.0.0.1", DstIP: "10.0.0.9"},
			ARP:     true,
			Packets: 1,
			Start:   1500 * time.Millisecond,
		},
	}

	frames, err := Frames(base, plans)
	if err != nil {
		t.Fatalf("Frames failed: %v", err)
	}
	var offsets []time.Duration
	for _, f := range frames {
		offsets = append(offsets, f.Timestamp.Sub(base))
	}
	want := []time.Duration{0, time.Second, 1500 * time.Millisecond, 62 * time.Second, 63 * time.Second}
	if len(offsets) != len(want) {
		t.Fatalf("Expected %d frames, got %d", len(want), len(offsets))
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("frame %d at %v, want %v", i, offsets[i], want[i])
		}
	}
}

func TestWrite_ReadBack(t *testing.T) {
	tcp, err := Build(PacketSpec{Protocol: 6, SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 1, DstPort: 2, PayloadSize: 10})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	udp6, err := Build(PacketSpec{Protocol: 17, SrcIP: "fe80::1", DstIP: "fe80::2", SrcPort: 3, DstPort: 4})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	frames := []Frame{{Timestamp: time.Unix(1, 0), Data: tcp}, {Timestamp: time.Unix(2, 0), Data: udp6}}
	if err := Write(&buf, frames); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r, err := pcapgo.NewReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open written capture: %v", err)
	}
	data, _, err := r.ReadPacketData()
	if err != nil {
		t.Fatalf("Failed to read first packet: %v", err)
	}
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok || ip.Length != 20+20+10 {
		t.Errorf("Unexpected IPv4 layer %+v", ip)
	}
	data, _, err = r.ReadPacketData()
	if err != nil {
		t.Fatalf("Failed to read second packet: %v", err)
	}
	packet = gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	if packet.Layer(layers.LayerTypeUDP) == nil || packet.Layer(layers.LayerTypeIPv6) == nil {
		t.Error("Expected a UDP over IPv6 packet")
	}
}

func TestBuild_InvalidAddress(t *testing.T) {
	if _, err := Build(PacketSpec{Protocol: 6, SrcIP: "nope", DstIP: "10.0.0.2"}); err == nil {
		t.Error("Expected an error for an invalid address")
	}
	if _, err := Build(PacketSpec{Protocol: 47, SrcIP: "10.0.0.1", DstIP: "10.0.0.2"}); err == nil {
		t.Error("Expected an error for an unsupported protocol")
	}
}
