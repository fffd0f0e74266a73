package frame

import "testing"

func TestEncodePingExactBytes(t *testing.T) {
	buf, err := EncodePing()
	if err != nil {
		t.Fatalf("EncodePing() error = %v", err)
	}
	want := []byte{TypePing}
	got := buf.Bytes()
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("EncodePing() = %v, want %v", got, want)
	}
}

func TestEncodeHandshakeDoneExactBytes(t *testing.T) {
	buf, err := EncodeHandshakeDone()
	if err != nil {
		t.Fatalf("EncodeHandshakeDone() error = %v", err)
	}
	want := []byte{TypeHandshakeDone}
	got := buf.Bytes()
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("EncodeHandshakeDone() = %v, want %v", got, want)
	}
}

func TestEncodePaddingCollapsesToOneFrame(t *testing.T) {
	buf, err := EncodePadding(5)
	if err != nil {
		t.Fatalf("EncodePadding(5) error = %v", err)
	}
	got := buf.Bytes()
	if len(got) != 6 {
		t.Fatalf("EncodePadding(5) length = %d, want 6", len(got))
	}
	for i, b := range got {
		if b != 0x00 {
			t.Errorf("EncodePadding(5)[%d] = 0x%02X, want 0x00", i, b)
		}
	}
}

func TestDecodePaddingConsumesOnlyTheZeroRun(t *testing.T) {
	// Three PADDING bytes followed by PING must collapse into one
	// logical PADDING frame and leave PING untouched.
	payload := []byte{0x00, 0x00, 0x00, TypePing}

	ctx := &DecodeContext{}
	n, err := decodePadding(ctx, TypePadding, payload[1:], nil)
	if err != nil {
		t.Fatalf("decodePadding error = %v", err)
	}
	if n != 2 {
		t.Errorf("decodePadding consumed %d bytes, want 2", n)
	}
}

func TestRoundTripPingThroughProcessPacket(t *testing.T) {
	buf, err := EncodePing()
	if err != nil {
		t.Fatalf("EncodePing() error = %v", err)
	}

	ctx := &DecodeContext{}
	var pki PacketInfo
	if err := ProcessPacket(ctx, buf.Bytes(), &pki); err != nil {
		t.Fatalf("ProcessPacket() error = %v", err)
	}
	if !pki.AckEliciting {
		t.Errorf("PING: AckEliciting = false, want true")
	}
	if !pki.NonProbing {
		t.Errorf("PING: NonProbing = false, want true")
	}
}

func TestProcessPacketRejectsUnknownType(t *testing.T) {
	ctx := &DecodeContext{}
	var pki PacketInfo
	err := ProcessPacket(ctx, []byte{0x1F}, &pki)
	if err == nil {
		t.Fatal("ProcessPacket() error = nil, want ErrUnsupportedFrame")
	}
}

func TestFrameTypeLabel(t *testing.T) {
	if got := frameTypeLabel(TypePing); got != "ping" {
		t.Errorf("frameTypeLabel(TypePing) = %q, want %q", got, "ping")
	}
	if got := frameTypeLabel(0x1F); got != "unknown" {
		t.Errorf("frameTypeLabel(0x1F) = %q, want %q", got, "unknown")
	}
}
