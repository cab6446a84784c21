package ddp

import (
	"testing"
)

func TestChunk_SinglePacket(t *testing.T) {
	payload := make([]byte, 30) // 10 pixels
	packets := Chunk(3, 0, payload)

	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	p := packets[0]
	if !p.Push {
		t.Error("expected Push on the only chunk")
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
	if len(p.Payload) != 30 {
		t.Errorf("expected payload len 30, got %d", len(p.Payload))
	}
}

func TestChunk_500Pixels(t *testing.T) {
	// spec.md §8 scenario 1: 500 pixels * 3 = 1500 bytes, two chunks.
	payload := make([]byte, 1500)
	packets := Chunk(1, 0, payload)

	if len(packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(packets))
	}

	first, second := packets[0], packets[1]
	if first.Offset != 0 || len(first.Payload) != 1440 || first.Push {
		t.Errorf("first chunk wrong: offset=%d len=%d push=%v", first.Offset, len(first.Payload), first.Push)
	}
	if second.Offset != 1440 || len(second.Payload) != 60 || !second.Push {
		t.Errorf("second chunk wrong: offset=%d len=%d push=%v", second.Offset, len(second.Payload), second.Push)
	}
	if first.Sequence != second.Sequence {
		t.Errorf("chunks of one frame must share a sequence number")
	}
}

func TestPacket_BytesHeader(t *testing.T) {
	p := Packet{Push: true, Sequence: 5, Offset: 1440, Payload: []byte{1, 2, 3}}
	wire := p.Bytes()

	if len(wire) != headerLen+3 {
		t.Fatalf("expected %d bytes, got %d", headerLen+3, len(wire))
	}
	if wire[0]&0x40 != 0x40 {
		t.Error("VER1 bit must be set")
	}
	if wire[0]&0x01 != 0x01 {
		t.Error("PUSH bit must be set")
	}
	if wire[1] != 5 {
		t.Errorf("expected sequence 5, got %d", wire[1])
	}
	if wire[2] != dataTypeRGB {
		t.Errorf("expected data type 0x0B, got %#x", wire[2])
	}
	if wire[3] != destID {
		t.Errorf("expected dest id 0x01, got %#x", wire[3])
	}
	offset := uint32(wire[4])<<24 | uint32(wire[5])<<16 | uint32(wire[6])<<8 | uint32(wire[7])
	if offset != 1440 {
		t.Errorf("expected offset 1440, got %d", offset)
	}
	length := uint16(wire[8])<<8 | uint16(wire[9])
	if length != 3 {
		t.Errorf("expected length 3, got %d", length)
	}
}

func TestSequenceCounter_CyclesOneToFifteen(t *testing.T) {
	var c SequenceCounter
	for frame := 0; frame < 20; frame++ {
		seq := c.Next()
		if seq < 1 || seq > 15 {
			t.Fatalf("sequence out of range: %d", seq)
		}
	}
}

func TestSequenceCounter_WrapsFifteenToOne(t *testing.T) {
	var c SequenceCounter
	c.current = 15
	if got := c.Next(); got != 1 {
		t.Errorf("expected wrap to 1, got %d", got)
	}
}
