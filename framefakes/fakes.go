// Package framefakes provides recording test doubles for every
// collaborator interface frame declares (§6). None of these are
// production-quality: PnMap, OutQ, InQ, Streams, CidSet, Socket and the
// rest are owned by packet protection, congestion control, socket I/O
// and the crypto handshake in a real deployment. These doubles exist so
// cmd/quicframedump, and any test outside package frame, can drive
// frame.ProcessPacket and the encoders without a full connection stack.
// The frame package's own tests define local doubles instead, since
// importing this package from them would be an import cycle.
package framefakes

import (
	"time"

	"github.com/yourusername/quicframe/frame"
)

// Stream is a recording StreamRef. Every StreamRef setter appends to a
// call log so tests can assert exact sequences, not just final state;
// the test-only SetRecvBytes helper is not logged.
type Stream struct {
	id uint64

	sendOffset      uint64
	sendMaxBytes    uint64
	sendDataBlocked bool
	sendState       frame.SendState

	recvMaxBytes uint64
	recvBytes    uint64
	recvWindow   uint64
	recvState    frame.RecvState

	Calls []string
}

// NewStream returns a Stream with the given id and a generous default
// receive window, so decoders that compute new_max = bytes + window
// don't need every test to set one up by hand.
func NewStream(id uint64) *Stream {
	return &Stream{id: id, recvWindow: 1 << 20}
}

func (s *Stream) ID() uint64 { return s.id }

func (s *Stream) SendOffset() uint64 { return s.sendOffset }
func (s *Stream) SetSendOffset(v uint64) {
	s.sendOffset = v
	s.Calls = append(s.Calls, "SetSendOffset")
}
func (s *Stream) SendMaxBytes() uint64 { return s.sendMaxBytes }
func (s *Stream) SetSendMaxBytes(v uint64) {
	s.sendMaxBytes = v
	s.Calls = append(s.Calls, "SetSendMaxBytes")
}
func (s *Stream) SendDataBlocked() bool { return s.sendDataBlocked }
func (s *Stream) SetSendDataBlocked(v bool) {
	s.sendDataBlocked = v
	s.Calls = append(s.Calls, "SetSendDataBlocked")
}
func (s *Stream) SendState() frame.SendState { return s.sendState }
func (s *Stream) SetSendState(v frame.SendState) {
	s.sendState = v
	s.Calls = append(s.Calls, "SetSendState")
}

func (s *Stream) RecvMaxBytes() uint64 { return s.recvMaxBytes }
func (s *Stream) SetRecvMaxBytes(v uint64) {
	s.recvMaxBytes = v
	s.Calls = append(s.Calls, "SetRecvMaxBytes")
}
func (s *Stream) RecvBytes() uint64          { return s.recvBytes }
func (s *Stream) RecvWindow() uint64         { return s.recvWindow }
func (s *Stream) RecvState() frame.RecvState { return s.recvState }
func (s *Stream) SetRecvState(v frame.RecvState) {
	s.recvState = v
	s.Calls = append(s.Calls, "SetRecvState")
}

// SetRecvBytes lets a test push the stream's received-byte count
// forward before exercising a blocked-window decoder.
func (s *Stream) SetRecvBytes(v uint64) { s.recvBytes = v }

// PnMap is a recording PnMap fed by a fixed slice of gap blocks a test
// configures up front.
type PnMap struct {
	MaxPn     uint64
	MinPn     uint64
	MaxPnTime time.Time
	Base      uint64
	Gaps      []frame.GapAckBlock
}

func (p *PnMap) MaxPnSeen() uint64         { return p.MaxPn }
func (p *PnMap) MinPnSeen() uint64         { return p.MinPn }
func (p *PnMap) MaxPnTimestamp() time.Time { return p.MaxPnTime }
func (p *PnMap) BasePn() uint64            { return p.Base }
func (p *PnMap) GapBlocks(out []frame.GapAckBlock) int {
	n := copy(out, p.Gaps)
	return n
}

// ctrlTailEntry records one OutQ.CtrlTail call.
type ctrlTailEntry struct {
	Buf    *frame.FrameBuf
	Urgent bool
}

// OutQ is a recording OutQ. CtrlTail appends to Sent in call order so
// tests can assert reciprocal-frame FIFO ordering.
type OutQ struct {
	AckDelayExp uint8
	maxBytes    uint64
	dataBlocked bool

	RetransmitCalls []RetransmitCall
	Sent            []ctrlTailEntry

	// FailCtrlTail makes the next N CtrlTail calls return ErrNoMemory,
	// for exercising the rollback paths decode.go's blocked-frame
	// handlers take when emitting a reciprocal frame fails.
	FailCtrlTail int
}

// RetransmitCall records one OutQ.RetransmitCheck invocation.
type RetransmitCall struct {
	Largest, Smallest, AckPn, Delay uint64
}

func (o *OutQ) AckDelayExponent() uint8 { return o.AckDelayExp }
func (o *OutQ) MaxBytes() uint64        { return o.maxBytes }
func (o *OutQ) SetMaxBytes(v uint64)    { o.maxBytes = v }
func (o *OutQ) DataBlocked() bool       { return o.dataBlocked }
func (o *OutQ) SetDataBlocked(v bool)   { o.dataBlocked = v }

func (o *OutQ) RetransmitCheck(largest, smallest, ackPn, delay uint64) {
	o.RetransmitCalls = append(o.RetransmitCalls, RetransmitCall{largest, smallest, ackPn, delay})
}

func (o *OutQ) CtrlTail(buf *frame.FrameBuf, urgent bool) error {
	if o.FailCtrlTail > 0 {
		o.FailCtrlTail--
		return frame.ErrNoMemory
	}
	o.Sent = append(o.Sent, ctrlTailEntry{buf, urgent})
	return nil
}

// InQ is a recording InQ.
type InQ struct {
	maxBytes uint64
	bytes    uint64
	window   uint64

	Reassembled []*frame.FrameBuf
}

// NewInQ returns an InQ with a default window, matching the Stream
// default so blocked-frame tests don't need to wire one up per case.
func NewInQ() *InQ { return &InQ{window: 1 << 20} }

func (q *InQ) MaxBytes() uint64     { return q.maxBytes }
func (q *InQ) SetMaxBytes(v uint64) { q.maxBytes = v }
func (q *InQ) Bytes() uint64        { return q.bytes }
func (q *InQ) Window() uint64       { return q.window }
func (q *InQ) SetBytes(v uint64)    { q.bytes = v }
func (q *InQ) SetWindow(v uint64)   { q.window = v }

func (q *InQ) ReasmTail(buf *frame.FrameBuf) error {
	q.Reassembled = append(q.Reassembled, buf)
	return nil
}

// Streams is a recording Streams table backed by plain maps; tests
// populate Recv/Send directly with *Stream values before exercising a
// decoder that needs to look one up.
type Streams struct {
	Recv map[uint64]*Stream
	Send map[uint64]*Stream

	server bool

	maxStreamsBidi     uint64
	streamsBidi        uint64
	recvMaxStreamsBidi uint64
	maxStreamsUni      uint64
	streamsUni         uint64
	recvMaxStreamsUni  uint64

	activeSend uint64
	hasActive  bool
	WakeCalls  int

	// NextStreamIDs records every id NextStreamID was called with, in
	// call order, so tests can assert the exact sequence MAX_STREAMS
	// updates unblocked.
	NextStreamIDs []uint64
}

// NewStreams returns an empty Streams table for isServer.
func NewStreams(isServer bool) *Streams {
	return &Streams{Recv: map[uint64]*Stream{}, Send: map[uint64]*Stream{}, server: isServer}
}

func (s *Streams) RecvGet(id uint64, _ bool) (frame.StreamRef, error) {
	st, ok := s.Recv[id]
	if !ok {
		return nil, frame.ErrInvalidFrame
	}
	return st, nil
}

func (s *Streams) SendGet(id uint64) (frame.StreamRef, error) {
	st, ok := s.Send[id]
	if !ok {
		return nil, frame.ErrInvalidFrame
	}
	return st, nil
}

func (s *Streams) ActiveSendStream() (uint64, bool) { return s.activeSend, s.hasActive }
func (s *Streams) ClearActiveSendStream()           { s.hasActive = false }

// SetActiveSendStream lets a test mark id as the table's active sender,
// for exercising EncodeResetStream's clear-on-match path.
func (s *Streams) SetActiveSendStream(id uint64) {
	s.activeSend = id
	s.hasActive = true
}

func (s *Streams) MaxStreamsBidi() uint64         { return s.maxStreamsBidi }
func (s *Streams) SetMaxStreamsBidi(v uint64)     { s.maxStreamsBidi = v }
func (s *Streams) StreamsBidi() uint64            { return s.streamsBidi }
func (s *Streams) SetStreamsBidi(v uint64)        { s.streamsBidi = v }
func (s *Streams) RecvMaxStreamsBidi() uint64     { return s.recvMaxStreamsBidi }
func (s *Streams) SetRecvMaxStreamsBidi(v uint64) { s.recvMaxStreamsBidi = v }

func (s *Streams) MaxStreamsUni() uint64         { return s.maxStreamsUni }
func (s *Streams) SetMaxStreamsUni(v uint64)     { s.maxStreamsUni = v }
func (s *Streams) StreamsUni() uint64            { return s.streamsUni }
func (s *Streams) SetStreamsUni(v uint64)        { s.streamsUni = v }
func (s *Streams) RecvMaxStreamsUni() uint64     { return s.recvMaxStreamsUni }
func (s *Streams) SetRecvMaxStreamsUni(v uint64) { s.recvMaxStreamsUni = v }

func (s *Streams) IsServer() bool    { return s.server }
func (s *Streams) WakeWriteWaiters() { s.WakeCalls++ }

func (s *Streams) NextStreamID(id uint64) { s.NextStreamIDs = append(s.NextStreamIDs, id) }

// CidSet is a recording CidSet backed by an ordered slice of entries.
type CidSet struct {
	entries []frame.ConnIdEntry
	maxCnt  uint64

	Removed []uint64
}

// NewCidSet seeds a CidSet with one initial entry at seqno 0, matching
// the connection-ID state every real connection starts with, and a
// max_count of maxCount.
func NewCidSet(maxCount uint64) *CidSet {
	return &CidSet{
		entries: []frame.ConnIdEntry{{SeqNo: 0, CID: make([]byte, frame.CIDLen)}},
		maxCnt:  maxCount,
	}
}

func (c *CidSet) LastNumber() uint64 {
	if len(c.entries) == 0 {
		return 0
	}
	return c.entries[len(c.entries)-1].SeqNo
}

func (c *CidSet) FirstNumber() uint64 {
	if len(c.entries) == 0 {
		return 0
	}
	return c.entries[0].SeqNo
}

func (c *CidSet) MaxCount() uint64 { return c.maxCnt }

func (c *CidSet) Append(entry frame.ConnIdEntry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func (c *CidSet) Remove(seqno uint64) error {
	for i, e := range c.entries {
		if e.SeqNo == seqno {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			c.Removed = append(c.Removed, seqno)
			return nil
		}
	}
	return frame.ErrInvalidFrame
}

// Entries exposes the live entry list for test assertions.
func (c *CidSet) Entries() []frame.ConnIdEntry { return c.entries }

// Socket is a recording Socket.
type Socket struct {
	ErrCode     int
	State       int
	RebindCalls int
}

func (s *Socket) SetErr(code int)       { s.ErrCode = code }
func (s *Socket) StateChange(state int) { s.State = state }
func (s *Socket) RebindActivePath()     { s.RebindCalls++ }

// Random is a deterministic Random double: Read fills p with a
// repeating byte pattern derived from Seed, rather than real entropy,
// so CID/token/entropy assertions in tests are reproducible.
type Random struct {
	Seed byte

	// FailNext, when true, makes the next Read call return an error and
	// resets itself, for exercising ErrNoMemory paths on entropy
	// exhaustion.
	FailNext bool
}

func (r *Random) Read(p []byte) error {
	if r.FailNext {
		r.FailNext = false
		return frame.ErrNoMemory
	}
	for i := range p {
		p[i] = r.Seed + byte(i)
	}
	return nil
}

// PacketCtx is a fixed-budget PacketCtx.
type PacketCtx struct {
	Max uint64
}

func (p *PacketCtx) MaxPayload() uint64 { return p.Max }

// PathValidator is a recording PathValidator tracking one outstanding
// src-side and one outstanding dst-side probe at a time, matching how a
// real connection only migrates one path at a time.
type PathValidator struct {
	srcArmed   bool
	srcEntropy [8]byte
	dstArmed   bool
	dstEntropy [8]byte

	ConfirmCalls []bool
}

func (p *PathValidator) ArmSrc(entropy [8]byte) { p.srcArmed = true; p.srcEntropy = entropy }
func (p *PathValidator) ArmDst(entropy [8]byte) { p.dstArmed = true; p.dstEntropy = entropy }

func (p *PathValidator) MatchSrc(entropy [8]byte) bool {
	return p.srcArmed && p.srcEntropy == entropy
}
func (p *PathValidator) MatchDst(entropy [8]byte) bool {
	return p.dstArmed && p.dstEntropy == entropy
}

func (p *PathValidator) Confirm(isSrc bool) {
	p.ConfirmCalls = append(p.ConfirmCalls, isSrc)
	if isSrc {
		p.srcArmed = false
	} else {
		p.dstArmed = false
	}
}

// SessionTicketStore is a recording SessionTicketStore.
type SessionTicketStore struct {
	Ticket []byte
}

func (s *SessionTicketStore) SetSessionTicket(data []byte) error {
	s.Ticket = append([]byte(nil), data...)
	return nil
}

// TokenStore is a recording TokenStore.
type TokenStore struct {
	Token []byte
}

func (t *TokenStore) SetToken(data []byte) error {
	t.Token = append([]byte(nil), data...)
	return nil
}
