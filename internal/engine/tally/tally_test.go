package tally

import (
	"FlowSpectra/internal/core/model"
	"testing"
)

func ipPacket(proto uint8) *model.PacketInfo {
	return &model.PacketInfo{IsIP: true, Protocol: proto}
}

func frame(name string) *model.PacketInfo {
	return &model.PacketInfo{FrameType: name}
}

func fromPackets(packets []*model.PacketInfo) *model.ProtocolTally {
	t := model.NewProtocolTally()
	for _, p := range packets {
		Add(t, p)
	}
	return t
}

func TestAdd_CountsSumToTotal(t *testing.T) {
	packets := []*model.PacketInfo{
		ipPacket(6), ipPacket(6), ipPacket(17), ipPacket(1), ipPacket(47), ipPacket(89),
		frame("ARP"), frame("ARP"), frame("LLC"), frame(""),
	}
	got := fromPackets(packets)

	if got.Count != int64(len(packets)) {
		t.Fatalf("Expected count %d, got %d", len(packets), got.Count)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("Tally should be consistent: %v", err)
	}
	if got.IPMap[6] != 2 || got.IPMap[17] != 1 || got.IPMap[47] != 1 {
		t.Errorf("Unexpected ip map: %v", got.IPMap)
	}
	if got.NonIPMap["ARP"] != 2 || got.NonIPMap["Unknown"] != 1 {
		t.Errorf("Unexpected non-ip map: %v", got.NonIPMap)
	}
}

func TestBuckets(t *testing.T) {
	tally := &model.ProtocolTally{
		IPMap:    map[uint8]int64{6: 10, 17: 5, 1: 2, 47: 3, 50: 4},
		NonIPMap: map[string]int64{"ARP": 7, "LLC": 1, "Dot1Q": 2},
		Count:    34,
	}
	want := Distribution{10, 5, 2, 7, 7, 3}
	got := Buckets(tally)
	if got != want {
		t.Errorf("Buckets() = %v, want %v", got, want)
	}
	if got.Total() != tally.Count {
		t.Errorf("Bucket total %d differs from tally count %d", got.Total(), tally.Count)
	}
}

func TestBuckets_MissingBucketsAreZero(t *testing.T) {
	tests := []struct {
		name  string
		tally *model.ProtocolTally
		want  Distribution
	}{
		{"empty", model.NewProtocolTally(), Distribution{}},
		{"nil maps", &model.ProtocolTally{}, Distribution{}},
		{"udp only", &model.ProtocolTally{IPMap: map[uint8]int64{17: 3}, Count: 3}, Distribution{0, 3, 0, 0, 0, 0}},
		{"non-ip only", &model.ProtocolTally{NonIPMap: map[string]int64{"LLC": 4}, Count: 4}, Distribution{0, 0, 0, 0, 0, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Buckets(tt.tally); got != tt.want {
				t.Errorf("Buckets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdd_NilMaps(t *testing.T) {
	tally := &model.ProtocolTally{}
	Add(tally, ipPacket(6))
	Add(tally, frame("ARP"))
	if tally.Count != 2 || tally.IPMap[6] != 1 || tally.NonIPMap["ARP"] != 1 {
		t.Errorf("Unexpected tally after Add: %+v", tally)
	}
}
