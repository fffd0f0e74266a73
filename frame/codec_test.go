package frame

import "testing"

// Local minimal collaborator doubles, following ack_test.go's pattern:
// this package's own tests avoid importing framefakes to stay free of an
// import cycle (framefakes imports frame).

type fakeStream struct {
	id uint64

	sendOffset   uint64
	sendMaxBytes uint64
	sendBlocked  bool
	sendState    SendState

	recvMaxBytes uint64
	recvBytes    uint64
	recvWindow   uint64
	recvState    RecvState
}

func newFakeStream(id uint64) *fakeStream {
	return &fakeStream{id: id, recvWindow: 1 << 20}
}

func (s *fakeStream) ID() uint64                { return s.id }
func (s *fakeStream) SendOffset() uint64        { return s.sendOffset }
func (s *fakeStream) SetSendOffset(v uint64)    { s.sendOffset = v }
func (s *fakeStream) SendMaxBytes() uint64      { return s.sendMaxBytes }
func (s *fakeStream) SetSendMaxBytes(v uint64)  { s.sendMaxBytes = v }
func (s *fakeStream) SendDataBlocked() bool     { return s.sendBlocked }
func (s *fakeStream) SetSendDataBlocked(v bool) { s.sendBlocked = v }
func (s *fakeStream) SendState() SendState      { return s.sendState }
func (s *fakeStream) SetSendState(v SendState)  { s.sendState = v }

func (s *fakeStream) RecvMaxBytes() uint64     { return s.recvMaxBytes }
func (s *fakeStream) SetRecvMaxBytes(v uint64) { s.recvMaxBytes = v }
func (s *fakeStream) RecvBytes() uint64        { return s.recvBytes }
func (s *fakeStream) RecvWindow() uint64       { return s.recvWindow }
func (s *fakeStream) RecvState() RecvState     { return s.recvState }
func (s *fakeStream) SetRecvState(v RecvState) { s.recvState = v }

type fakeStreams struct {
	recv map[uint64]*fakeStream
	send map[uint64]*fakeStream

	server bool

	maxStreamsBidi, streamsBidi, recvMaxStreamsBidi uint64
	maxStreamsUni, streamsUni, recvMaxStreamsUni    uint64

	activeSend uint64
	hasActive  bool
	wakeCalls  int

	nextStreamIDs []uint64
}

func newFakeStreams(isServer bool) *fakeStreams {
	return &fakeStreams{recv: map[uint64]*fakeStream{}, send: map[uint64]*fakeStream{}, server: isServer}
}

func (s *fakeStreams) RecvGet(id uint64, _ bool) (StreamRef, error) {
	st, ok := s.recv[id]
	if !ok {
		return nil, ErrInvalidFrame
	}
	return st, nil
}
func (s *fakeStreams) SendGet(id uint64) (StreamRef, error) {
	st, ok := s.send[id]
	if !ok {
		return nil, ErrInvalidFrame
	}
	return st, nil
}
func (s *fakeStreams) ActiveSendStream() (uint64, bool) { return s.activeSend, s.hasActive }
func (s *fakeStreams) ClearActiveSendStream()           { s.hasActive = false }
func (s *fakeStreams) setActive(id uint64)              { s.activeSend, s.hasActive = id, true }

func (s *fakeStreams) MaxStreamsBidi() uint64         { return s.maxStreamsBidi }
func (s *fakeStreams) SetMaxStreamsBidi(v uint64)     { s.maxStreamsBidi = v }
func (s *fakeStreams) StreamsBidi() uint64            { return s.streamsBidi }
func (s *fakeStreams) SetStreamsBidi(v uint64)        { s.streamsBidi = v }
func (s *fakeStreams) RecvMaxStreamsBidi() uint64     { return s.recvMaxStreamsBidi }
func (s *fakeStreams) SetRecvMaxStreamsBidi(v uint64) { s.recvMaxStreamsBidi = v }

func (s *fakeStreams) MaxStreamsUni() uint64         { return s.maxStreamsUni }
func (s *fakeStreams) SetMaxStreamsUni(v uint64)     { s.maxStreamsUni = v }
func (s *fakeStreams) StreamsUni() uint64            { return s.streamsUni }
func (s *fakeStreams) SetStreamsUni(v uint64)        { s.streamsUni = v }
func (s *fakeStreams) RecvMaxStreamsUni() uint64     { return s.recvMaxStreamsUni }
func (s *fakeStreams) SetRecvMaxStreamsUni(v uint64) { s.recvMaxStreamsUni = v }

func (s *fakeStreams) IsServer() bool    { return s.server }
func (s *fakeStreams) WakeWriteWaiters() { s.wakeCalls++ }

func (s *fakeStreams) NextStreamID(id uint64) { s.nextStreamIDs = append(s.nextStreamIDs, id) }

type fakeInQ struct {
	maxBytes, bytes, window uint64
	reassembled             []*FrameBuf
}

func newFakeInQ() *fakeInQ { return &fakeInQ{window: 1 << 20} }

func (q *fakeInQ) MaxBytes() uint64     { return q.maxBytes }
func (q *fakeInQ) SetMaxBytes(v uint64) { q.maxBytes = v }
func (q *fakeInQ) Bytes() uint64        { return q.bytes }
func (q *fakeInQ) Window() uint64       { return q.window }
func (q *fakeInQ) ReasmTail(buf *FrameBuf) error {
	q.reassembled = append(q.reassembled, buf)
	return nil
}

type fakeCidSet struct {
	entries []ConnIdEntry
	maxCnt  uint64
	removed []uint64
}

func newFakeCidSet(maxCount uint64) *fakeCidSet {
	return &fakeCidSet{entries: []ConnIdEntry{{SeqNo: 0, CID: make([]byte, CIDLen)}}, maxCnt: maxCount}
}

func (c *fakeCidSet) LastNumber() uint64 {
	if len(c.entries) == 0 {
		return 0
	}
	return c.entries[len(c.entries)-1].SeqNo
}
func (c *fakeCidSet) FirstNumber() uint64 {
	if len(c.entries) == 0 {
		return 0
	}
	return c.entries[0].SeqNo
}
func (c *fakeCidSet) MaxCount() uint64 { return c.maxCnt }
func (c *fakeCidSet) Append(entry ConnIdEntry) error {
	c.entries = append(c.entries, entry)
	return nil
}
func (c *fakeCidSet) Remove(seqno uint64) error {
	for i, e := range c.entries {
		if e.SeqNo == seqno {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			c.removed = append(c.removed, seqno)
			return nil
		}
	}
	return ErrInvalidFrame
}

type fakeSocket struct {
	errCode     int
	state       int
	rebindCalls int
}

func (s *fakeSocket) SetErr(code int)       { s.errCode = code }
func (s *fakeSocket) StateChange(state int) { s.state = state }
func (s *fakeSocket) RebindActivePath()     { s.rebindCalls++ }

type fakeRandom struct{ seed byte }

func (r *fakeRandom) Read(p []byte) error {
	for i := range p {
		p[i] = r.seed + byte(i)
	}
	return nil
}

type fakePacketCtx struct{ max uint64 }

func (p *fakePacketCtx) MaxPayload() uint64 { return p.max }

type fakePathValidator struct {
	srcArmed, dstArmed     bool
	srcEntropy, dstEntropy [8]byte
	confirmCalls           []bool
}

func (p *fakePathValidator) ArmSrc(e [8]byte)        { p.srcArmed, p.srcEntropy = true, e }
func (p *fakePathValidator) ArmDst(e [8]byte)        { p.dstArmed, p.dstEntropy = true, e }
func (p *fakePathValidator) MatchSrc(e [8]byte) bool { return p.srcArmed && p.srcEntropy == e }
func (p *fakePathValidator) MatchDst(e [8]byte) bool { return p.dstArmed && p.dstEntropy == e }
func (p *fakePathValidator) Confirm(isSrc bool) {
	p.confirmCalls = append(p.confirmCalls, isSrc)
	if isSrc {
		p.srcArmed = false
	} else {
		p.dstArmed = false
	}
}

type fakeSessionTicketStore struct{ ticket []byte }

func (s *fakeSessionTicketStore) SetSessionTicket(data []byte) error {
	s.ticket = append([]byte(nil), data...)
	return nil
}

type fakeTokenStore struct{ token []byte }

func (t *fakeTokenStore) SetToken(data []byte) error {
	t.token = append([]byte(nil), data...)
	return nil
}

func TestStreamEncodeDecodeWithFin(t *testing.T) {
	// §8 scenario 2: stream id=4, offset=0, payload "hi", FIN set.
	st := newFakeStream(4)
	pctx := &fakePacketCtx{max: 1200}

	buf, err := EncodeStream(pctx, st, []byte("hi"), FlagFin)
	if err != nil {
		t.Fatalf("EncodeStream() error = %v", err)
	}
	want := []byte{0x0B, 0x04, 0x02, 'h', 'i'}
	got := buf.Bytes()
	if len(got) != len(want) {
		t.Fatalf("EncodeStream() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EncodeStream()[%d] = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
	if st.SendOffset() != 2 {
		t.Errorf("stream.SendOffset() = %d, want 2", st.SendOffset())
	}

	streams := newFakeStreams(false)
	streams.recv[4] = newFakeStream(4)
	inq := newFakeInQ()
	ctx := &DecodeContext{Streams: streams, InQ: inq}

	n, err := decodeStream(ctx, got[0], got[1:], &PacketInfo{})
	if err != nil {
		t.Fatalf("decodeStream() error = %v", err)
	}
	if n != len(got)-1 {
		t.Errorf("decodeStream() consumed %d, want %d", n, len(got)-1)
	}
	if len(inq.reassembled) != 1 {
		t.Fatalf("len(inq.reassembled) = %d, want 1", len(inq.reassembled))
	}
	frag := inq.reassembled[0]
	if string(frag.Bytes()) != "hi" || !frag.StreamFin {
		t.Errorf("reassembled fragment = %q fin=%v, want %q fin=true", frag.Bytes(), frag.StreamFin, "hi")
	}
}

func TestStreamEncodeSaturatesBudgetClearsFin(t *testing.T) {
	st := newFakeStream(4)
	// Budget only large enough for the header plus a few payload bytes.
	pctx := &fakePacketCtx{max: 7}

	buf, err := EncodeStream(pctx, st, []byte("hello"), FlagFin)
	if err != nil {
		t.Fatalf("EncodeStream() error = %v", err)
	}
	if buf.StreamFin {
		t.Error("EncodeStream() set FIN on a frame that saturated the packet budget, want cleared")
	}
	if st.SendOffset() >= 5 {
		t.Errorf("stream.SendOffset() = %d, want truncated below full payload length 5", st.SendOffset())
	}
}

func TestStreamEncodeSetsOffBitAfterFirstWrite(t *testing.T) {
	st := newFakeStream(9)
	pctx := &fakePacketCtx{max: 1200}

	first, err := EncodeStream(pctx, st, []byte("ab"), 0)
	if err != nil {
		t.Fatalf("EncodeStream() error = %v", err)
	}
	if first.Bytes()[0]&StreamFlagOff != 0 {
		t.Errorf("first STREAM frame set OFF, want clear (offset starts at 0)")
	}

	second, err := EncodeStream(pctx, st, []byte("cd"), 0)
	if err != nil {
		t.Fatalf("EncodeStream() error = %v", err)
	}
	if second.Bytes()[0]&StreamFlagOff == 0 {
		t.Errorf("second STREAM frame did not set OFF, want set (offset now %d)", st.SendOffset())
	}
}

func TestResetStreamEncodeDecode(t *testing.T) {
	streams := newFakeStreams(false)
	st := newFakeStream(4)
	st.SetSendOffset(42)
	streams.setActive(4)

	buf, err := EncodeResetStream(streams, st, 7)
	if err != nil {
		t.Fatalf("EncodeResetStream() error = %v", err)
	}
	if _, ok := streams.ActiveSendStream(); ok {
		t.Error("EncodeResetStream() left the reset stream active, want cleared")
	}

	streams.recv[4] = newFakeStream(4)
	ctx := &DecodeContext{Streams: streams}
	if _, err := decodeResetStream(ctx, TypeResetStream, buf.Bytes()[1:], &PacketInfo{}); err != nil {
		t.Fatalf("decodeResetStream() error = %v", err)
	}
	if streams.recv[4].RecvState() != RecvStateResetRecvd {
		t.Errorf("stream.RecvState() = %v, want RecvStateResetRecvd", streams.recv[4].RecvState())
	}
}

func TestStopSendingEmitsReciprocalResetStream(t *testing.T) {
	streams := newFakeStreams(false)
	st := newFakeStream(5)
	streams.send[5] = st
	outq := &fakeOutQ{}
	ctx := &DecodeContext{Streams: streams, OutQ: outq}

	var w frameWriter
	w.WriteVarInt(5)
	w.WriteVarInt(99)

	if _, err := decodeStopSending(ctx, TypeStopSending, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeStopSending() error = %v", err)
	}
	if st.SendState() != SendStateResetSent {
		t.Errorf("stream.SendState() = %v, want SendStateResetSent", st.SendState())
	}
	if len(outq.sent) != 1 {
		t.Fatalf("len(outq.sent) = %d, want 1", len(outq.sent))
	}
	if outq.sent[0].FrameType != TypeResetStream {
		t.Errorf("reciprocal frame type = 0x%02X, want RESET_STREAM", outq.sent[0].FrameType)
	}
}

func TestCryptoRejectsNonSessionTicketPayload(t *testing.T) {
	ctx := &DecodeContext{Crypto: &fakeSessionTicketStore{}}

	var w frameWriter
	w.WriteVarInt(0)  // offset
	w.WriteVarInt(1)  // length
	w.WriteByte(0x05) // not the NewSessionTicket marker (4)

	if _, err := decodeCrypto(ctx, TypeCrypto, w.Bytes(), &PacketInfo{}); err == nil {
		t.Fatal("decodeCrypto() error = nil, want rejection of non-NewSessionTicket payload")
	}
}

func TestCryptoAcceptsSessionTicketMarker(t *testing.T) {
	ticket := &fakeSessionTicketStore{}
	ctx := &DecodeContext{Crypto: ticket}

	data := []byte{0x04, 0xAA, 0xBB}
	buf, err := EncodeCrypto(data)
	if err != nil {
		t.Fatalf("EncodeCrypto() error = %v", err)
	}
	n, err := decodeCrypto(ctx, TypeCrypto, buf.Bytes()[1:], &PacketInfo{})
	if err != nil {
		t.Fatalf("decodeCrypto() error = %v", err)
	}
	if n != len(buf.Bytes())-1 {
		t.Errorf("decodeCrypto() consumed %d, want %d", n, len(buf.Bytes())-1)
	}
	if string(ticket.ticket) != string(data) {
		t.Errorf("ticket.ticket = %v, want %v", ticket.ticket, data)
	}
}

func TestCryptoRejectsNonZeroOffset(t *testing.T) {
	ctx := &DecodeContext{Crypto: &fakeSessionTicketStore{}}
	var w frameWriter
	w.WriteVarInt(5) // non-zero offset
	w.WriteVarInt(1)
	w.WriteByte(4)

	if _, err := decodeCrypto(ctx, TypeCrypto, w.Bytes(), &PacketInfo{}); err == nil {
		t.Fatal("decodeCrypto() error = nil, want rejection of non-zero offset")
	}
}

func TestMaxDataIgnoresDecreases(t *testing.T) {
	outq := &fakeOutQ{maxBytes: 100, dataBlocked: true}
	ctx := &DecodeContext{OutQ: outq}

	var w frameWriter
	w.WriteVarInt(50) // below current, must be ignored

	if _, err := decodeMaxData(ctx, TypeMaxData, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeMaxData() error = %v", err)
	}
	if outq.maxBytes != 100 {
		t.Errorf("outq.maxBytes = %d, want unchanged 100", outq.maxBytes)
	}
	if !outq.dataBlocked {
		t.Errorf("outq.dataBlocked = false, want unchanged true (decrease ignored)")
	}
}

func TestMaxDataClearsDataBlockedOnIncrease(t *testing.T) {
	outq := &fakeOutQ{maxBytes: 100, dataBlocked: true}
	ctx := &DecodeContext{OutQ: outq}

	var w frameWriter
	w.WriteVarInt(200)

	if _, err := decodeMaxData(ctx, TypeMaxData, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeMaxData() error = %v", err)
	}
	if outq.maxBytes != 200 {
		t.Errorf("outq.maxBytes = %d, want 200", outq.maxBytes)
	}
	if outq.dataBlocked {
		t.Error("outq.dataBlocked = true, want cleared")
	}
}

func TestDataBlockedEmitsMaxDataAndRollsBackOnFailure(t *testing.T) {
	inq := newFakeInQ()
	inq.bytes = 1000
	inq.window = 500
	outq := &fakeOutQ{failCtrl: 1}
	ctx := &DecodeContext{InQ: inq, OutQ: outq}

	prev := inq.MaxBytes()
	var w frameWriter
	w.WriteVarInt(1000)

	if _, err := decodeDataBlocked(ctx, TypeDataBlocked, w.Bytes(), &PacketInfo{}); err == nil {
		t.Fatal("decodeDataBlocked() error = nil, want NOMEM propagated from failed ctrl_tail")
	}
	if inq.MaxBytes() != prev {
		t.Errorf("inq.MaxBytes() = %d, want rolled back to %d", inq.MaxBytes(), prev)
	}

	outq.failCtrl = 0
	if _, err := decodeDataBlocked(ctx, TypeDataBlocked, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeDataBlocked() error = %v", err)
	}
	if inq.MaxBytes() != 1500 {
		t.Errorf("inq.MaxBytes() = %d, want 1500", inq.MaxBytes())
	}
	if len(outq.sent) != 1 || outq.sent[0].FrameType != TypeMaxData {
		t.Errorf("expected one emitted MAX_DATA frame")
	}
}

func TestMaxStreamsUpdatesLimitAndWakesWaiters(t *testing.T) {
	streams := newFakeStreams(true)
	ctx := &DecodeContext{Streams: streams}

	var w frameWriter
	w.WriteVarInt(10)

	if _, err := decodeMaxStreamsBidi(ctx, TypeMaxStreamsBidi, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeMaxStreamsBidi() error = %v", err)
	}
	if streams.MaxStreamsBidi() != 10 {
		t.Errorf("streams.MaxStreamsBidi() = %d, want 10", streams.MaxStreamsBidi())
	}
	if streams.wakeCalls != 1 {
		t.Errorf("streams.wakeCalls = %d, want 1", streams.wakeCalls)
	}
	// Bidi, server-initiated: ((10-1)<<2)|0x00|0x01 = 37.
	if len(streams.nextStreamIDs) != 1 || streams.nextStreamIDs[0] != 37 {
		t.Errorf("streams.nextStreamIDs = %v, want [37]", streams.nextStreamIDs)
	}
}

func TestStreamsBlockedEncodesCountShiftedByTwo(t *testing.T) {
	// §4.4/§9: streams_blocked encodes (limit>>2)+1, preserved as specified.
	buf, err := EncodeStreamsBlockedBidi(8)
	if err != nil {
		t.Fatalf("EncodeStreamsBlockedBidi() error = %v", err)
	}
	got, _, ok := DecodeVarInt(buf.Bytes()[1:])
	if !ok {
		t.Fatal("DecodeVarInt() ok = false")
	}
	if got != 3 {
		t.Errorf("encoded streams_blocked value = %d, want 3 ((8>>2)+1)", got)
	}
}

func TestNewConnectionIDAppendsAndSideEffectCommitsBeforeReturn(t *testing.T) {
	src := newFakeCidSet(4)
	rnd := &fakeRandom{seed: 0x11}

	buf, err := EncodeNewConnectionID(src, rnd)
	if err != nil {
		t.Fatalf("EncodeNewConnectionID() error = %v", err)
	}
	if len(src.entries) != 2 {
		t.Fatalf("len(src.entries) = %d, want 2 (initial + new)", len(src.entries))
	}
	if src.LastNumber() != 1 {
		t.Errorf("src.LastNumber() = %d, want 1", src.LastNumber())
	}
	if buf.FrameType != TypeNewConnectionID {
		t.Errorf("FrameType = 0x%02X, want NEW_CONNECTION_ID", buf.FrameType)
	}
}

func TestNewConnectionIDDecodeRejectsPriorGreaterThanSeqno(t *testing.T) {
	dst := newFakeCidSet(4)
	ctx := &DecodeContext{DstCIDs: dst, OutQ: &fakeOutQ{}}

	var w frameWriter
	w.WriteVarInt(1)  // seqno (= last+1, valid)
	w.WriteVarInt(2)  // prior > seqno: invalid
	w.WriteVarInt(16) // length
	w.Write(make([]byte, 16))
	w.Write(make([]byte, ResetTokenLen))

	if _, err := decodeNewConnectionID(ctx, TypeNewConnectionID, w.Bytes(), &PacketInfo{}); err == nil {
		t.Fatal("decodeNewConnectionID() error = nil, want rejection of prior > seqno")
	}
}

func TestNewConnectionIDDecodeForcesRetirement(t *testing.T) {
	// §8 scenario 5: dst set has {0}; receive seqno=1, prior=1 forces
	// retirement of seqno 0.
	dst := newFakeCidSet(4)
	outq := &fakeOutQ{}
	ctx := &DecodeContext{DstCIDs: dst, OutQ: outq}

	var w frameWriter
	w.WriteVarInt(1)
	w.WriteVarInt(1)
	w.WriteVarInt(16)
	w.Write(make([]byte, 16))
	w.Write(make([]byte, ResetTokenLen))

	if _, err := decodeNewConnectionID(ctx, TypeNewConnectionID, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeNewConnectionID() error = %v", err)
	}
	if len(outq.sent) != 1 {
		t.Fatalf("len(outq.sent) = %d, want 1 reciprocal retirement", len(outq.sent))
	}
	if outq.sent[0].FrameType != TypeRetireConnectionID {
		t.Errorf("reciprocal frame type = 0x%02X, want RETIRE_CONNECTION_ID", outq.sent[0].FrameType)
	}
}

func TestNewConnectionIDDecodeNoRetirementWhenPriorIsZero(t *testing.T) {
	dst := newFakeCidSet(4)
	outq := &fakeOutQ{}
	ctx := &DecodeContext{DstCIDs: dst, OutQ: outq}

	var w frameWriter
	w.WriteVarInt(1)
	w.WriteVarInt(0)
	w.WriteVarInt(16)
	w.Write(make([]byte, 16))
	w.Write(make([]byte, ResetTokenLen))

	if _, err := decodeNewConnectionID(ctx, TypeNewConnectionID, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeNewConnectionID() error = %v", err)
	}
	if len(outq.sent) != 0 {
		t.Errorf("len(outq.sent) = %d, want 0 (prior=0 forces no retirement)", len(outq.sent))
	}
}

func TestRetireConnectionIDReplenishesUnderMaxCount(t *testing.T) {
	src := newFakeCidSet(4) // seeded with seqno 0 only
	rnd := &fakeRandom{seed: 0x22}
	// Give the set a second entry so seqno 0 isn't the last remaining one.
	if _, err := EncodeNewConnectionID(src, rnd); err != nil {
		t.Fatalf("EncodeNewConnectionID() error = %v", err)
	}
	outq := &fakeOutQ{}
	ctx := &DecodeContext{SrcCIDs: src, OutQ: outq, Rand: rnd}

	var w frameWriter
	w.WriteVarInt(0)

	if _, err := decodeRetireConnectionID(ctx, TypeRetireConnectionID, w.Bytes(), &PacketInfo{}); err != nil {
		t.Fatalf("decodeRetireConnectionID() error = %v", err)
	}
	if len(src.removed) != 1 || src.removed[0] != 0 {
		t.Errorf("src.removed = %v, want [0]", src.removed)
	}
	if len(outq.sent) != 1 || outq.sent[0].FrameType != TypeNewConnectionID {
		t.Error("expected one replenishing NEW_CONNECTION_ID frame")
	}
}

func TestRetireConnectionIDRejectsOutOfOrderSeqno(t *testing.T) {
	src := newFakeCidSet(4)
	rnd := &fakeRandom{seed: 0x33}
	if _, err := EncodeNewConnectionID(src, rnd); err != nil {
		t.Fatalf("EncodeNewConnectionID() error = %v", err)
	}
	ctx := &DecodeContext{SrcCIDs: src, OutQ: &fakeOutQ{}, Rand: rnd}

	var w frameWriter
	w.WriteVarInt(1) // not the first (0)

	if _, err := decodeRetireConnectionID(ctx, TypeRetireConnectionID, w.Bytes(), &PacketInfo{}); err == nil {
		t.Fatal("decodeRetireConnectionID() error = nil, want rejection of out-of-order seqno")
	}
}

func TestPathChallengeEnqueuesUrgentPathResponse(t *testing.T) {
	outq := &fakeOutQ{}
	ctx := &DecodeContext{OutQ: outq}
	entropy := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	n, err := decodePathChallenge(ctx, TypePathChallenge, entropy, &PacketInfo{})
	if err != nil {
		t.Fatalf("decodePathChallenge() error = %v", err)
	}
	if n != 8 {
		t.Errorf("decodePathChallenge() consumed %d, want 8", n)
	}
	if len(outq.sent) != 1 {
		t.Fatalf("len(outq.sent) = %d, want 1", len(outq.sent))
	}
	if !outq.sentUrgent[0] {
		t.Error("PATH_RESPONSE was not enqueued urgent")
	}
	if string(outq.sent[0].Bytes()[1:]) != string(entropy) {
		t.Error("PATH_RESPONSE entropy does not match the triggering PATH_CHALLENGE")
	}
}

func TestPathResponseConfirmsSrcAndRebindsSocket(t *testing.T) {
	path := &fakePathValidator{}
	socket := &fakeSocket{}
	entropy := [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	path.ArmSrc(entropy)

	ctx := &DecodeContext{Path: path, Socket: socket}
	var pki PacketInfo
	if _, err := decodePathResponse(ctx, TypePathResponse, entropy[:], &pki); err != nil {
		t.Fatalf("decodePathResponse() error = %v", err)
	}
	if len(path.confirmCalls) != 1 || !path.confirmCalls[0] {
		t.Errorf("path.confirmCalls = %v, want [true]", path.confirmCalls)
	}
	if socket.rebindCalls != 1 {
		t.Errorf("socket.rebindCalls = %d, want 1", socket.rebindCalls)
	}
}

func TestPathResponseConfirmsDstMarksNonProbing(t *testing.T) {
	path := &fakePathValidator{}
	entropy := [8]byte{1, 1, 1, 1, 1, 1, 1, 1}
	path.ArmDst(entropy)

	ctx := &DecodeContext{Path: path}
	var pki PacketInfo
	if _, err := decodePathResponse(ctx, TypePathResponse, entropy[:], &pki); err != nil {
		t.Fatalf("decodePathResponse() error = %v", err)
	}
	if !pki.NonProbing {
		t.Error("pki.NonProbing = false, want true (dst-side match)")
	}
}

func TestConnectionCloseTransitionsToUserClosed(t *testing.T) {
	// §8 scenario 6: receive 0x1D err=0x0A plen=0.
	socket := &fakeSocket{}
	ctx := &DecodeContext{Socket: socket}

	buf, err := EncodeConnectionCloseApp(0x0A, "")
	if err != nil {
		t.Fatalf("EncodeConnectionCloseApp() error = %v", err)
	}
	n, err := decodeConnectionClose(ctx, TypeConnectionCloseApp, buf.Bytes()[1:], &PacketInfo{})
	if err != nil {
		t.Fatalf("decodeConnectionClose() error = %v", err)
	}
	// Post-type-byte bytes consumed: err_code (1) + phrase_len (1) = 2;
	// together with the type byte itself that's the 3 total wire bytes
	// §8 scenario 6 describes for the whole frame.
	if n != 2 {
		t.Errorf("decodeConnectionClose() consumed %d, want 2", n)
	}
	if socket.state != SocketStateUserClosed {
		t.Errorf("socket.state = %d, want SocketStateUserClosed", socket.state)
	}
	if socket.errCode != -ErrnoEPIPE {
		t.Errorf("socket.errCode = %d, want %d", socket.errCode, -ErrnoEPIPE)
	}
}

func TestConnectionClosePhraseBoundary(t *testing.T) {
	ctx := &DecodeContext{Socket: &fakeSocket{}}

	ok79 := make([]byte, 79)
	if _, err := EncodeConnectionCloseApp(1, string(ok79)); err != nil {
		t.Fatalf("EncodeConnectionCloseApp(79 bytes) error = %v", err)
	}

	tooLong := make([]byte, 80)
	if _, err := EncodeConnectionCloseApp(1, string(tooLong)); err == nil {
		t.Fatal("EncodeConnectionCloseApp(80-char phrase) error = nil, want rejection (81 bytes including NUL)")
	}

	// Decode side: craft an 81-byte phrase field directly and confirm rejection.
	var w frameWriter
	w.WriteVarInt(1)
	w.WriteVarInt(81)
	w.Write(make([]byte, 80))
	w.WriteByte(0)
	if _, err := decodeConnectionClose(ctx, TypeConnectionCloseApp, w.Bytes(), &PacketInfo{}); err == nil {
		t.Fatal("decodeConnectionClose() error = nil, want rejection of 81-byte phrase")
	}
}

func TestConnectionCloseTransportCarriesTriggeringFrameType(t *testing.T) {
	ctx := &DecodeContext{Socket: &fakeSocket{}}

	buf, err := EncodeConnectionCloseTransport(0x0A, uint64(TypeStreamBase), "bye")
	if err != nil {
		t.Fatalf("EncodeConnectionCloseTransport() error = %v", err)
	}
	if _, err := decodeConnectionClose(ctx, TypeConnectionCloseTransport, buf.Bytes()[1:], &PacketInfo{}); err != nil {
		t.Fatalf("decodeConnectionClose() error = %v", err)
	}
}

func TestNewTokenRoundTrip(t *testing.T) {
	store := &fakeTokenStore{}
	ctx := &DecodeContext{Tokens: store}

	data := []byte("address-validation-token")
	buf, err := EncodeNewToken(data)
	if err != nil {
		t.Fatalf("EncodeNewToken() error = %v", err)
	}
	if _, err := decodeNewToken(ctx, TypeNewToken, buf.Bytes()[1:], &PacketInfo{}); err != nil {
		t.Fatalf("decodeNewToken() error = %v", err)
	}
	if string(store.token) != string(data) {
		t.Errorf("store.token = %q, want %q", store.token, data)
	}
}

func TestProcessPacketNonProbingIsSetByAnyNonProbingFrame(t *testing.T) {
	// A PADDING-then-PING packet must still classify as non_probing: the
	// per-packet flag is monotone set-only across every frame, not an AND
	// of every frame's individual classification.
	padding, err := EncodePadding(3)
	if err != nil {
		t.Fatalf("EncodePadding() error = %v", err)
	}
	ping, err := EncodePing()
	if err != nil {
		t.Fatalf("EncodePing() error = %v", err)
	}
	payload := append(padding.Bytes(), ping.Bytes()...)

	ctx := &DecodeContext{}
	var pki PacketInfo
	if err := ProcessPacket(ctx, payload, &pki); err != nil {
		t.Fatalf("ProcessPacket() error = %v", err)
	}
	if !pki.NonProbing {
		t.Error("pki.NonProbing = false, want true (PING in the same packet is non-probing)")
	}
}

func TestProcessPacketProbingOnlyPacketIsNotNonProbing(t *testing.T) {
	path := &fakePathValidator{}
	ctx := &DecodeContext{OutQ: &fakeOutQ{}, Path: path}

	challenge, err := EncodePathChallenge(path, &fakeRandom{seed: 0x77})
	if err != nil {
		t.Fatalf("EncodePathChallenge() error = %v", err)
	}

	var pki PacketInfo
	if err := ProcessPacket(ctx, challenge.Bytes(), &pki); err != nil {
		t.Fatalf("ProcessPacket() error = %v", err)
	}
	if pki.NonProbing {
		t.Error("pki.NonProbing = true, want false (only probing frames in the packet)")
	}
	if !pki.AckEliciting {
		t.Error("pki.AckEliciting = false, want true (PATH_CHALLENGE is ack-eliciting)")
	}
}
