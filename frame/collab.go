package frame

import "time"

// This file lists every external collaborator the frame layer touches
// (§6 of the design). None are implemented here: packet protection,
// congestion control, loss detection, socket I/O and the crypto
// handshake all live outside this module. framefakes provides
// recording doubles of each for tests and the demo command.

// StreamRef is an opaque handle into the Streams collaborator: it
// exposes the send/recv fields each frame decoder or encoder needs to
// read or mutate, without this package knowing how streams are stored.
type StreamRef interface {
	ID() uint64

	SendOffset() uint64
	SetSendOffset(uint64)
	SendMaxBytes() uint64
	SetSendMaxBytes(uint64)
	SendDataBlocked() bool
	SetSendDataBlocked(bool)
	SendState() SendState
	SetSendState(SendState)

	RecvMaxBytes() uint64
	SetRecvMaxBytes(uint64)
	RecvBytes() uint64
	RecvWindow() uint64
	RecvState() RecvState
	SetRecvState(RecvState)
}

// PnMap is the packet-number map collaborator backing ACK generation;
// ACK encoding only ever reads from it.
type PnMap interface {
	MaxPnSeen() uint64
	MinPnSeen() uint64
	MaxPnTimestamp() time.Time
	BasePn() uint64
	// GapBlocks fills out with this map's gap blocks in ascending order
	// (the gap nearest base first, the highest last) and returns how many
	// it wrote.
	GapBlocks(out []GapAckBlock) int
}

// OutQ is the outbound queue collaborator: send-side flow control and
// the control-frame tail reciprocal frames get appended to.
type OutQ interface {
	AckDelayExponent() uint8
	MaxBytes() uint64
	SetMaxBytes(uint64)
	DataBlocked() bool
	SetDataBlocked(bool)
	// RetransmitCheck reports one ACK range; delay is only meaningful
	// on the first call for a given ACK frame.
	RetransmitCheck(largest, smallest, ackPn, delay uint64)
	// CtrlTail enqueues buf for transmission. urgent frames (PATH_RESPONSE)
	// jump ahead of routine control traffic.
	CtrlTail(buf *FrameBuf, urgent bool) error
}

// InQ is the inbound reassembly queue collaborator.
type InQ interface {
	MaxBytes() uint64
	SetMaxBytes(uint64)
	Bytes() uint64
	Window() uint64
	ReasmTail(buf *FrameBuf) error
}

// Streams is the stream table collaborator.
type Streams interface {
	RecvGet(id uint64, isServer bool) (StreamRef, error)
	SendGet(id uint64) (StreamRef, error)
	ActiveSendStream() (uint64, bool)
	ClearActiveSendStream()

	MaxStreamsBidi() uint64
	SetMaxStreamsBidi(uint64)
	StreamsBidi() uint64
	SetStreamsBidi(uint64)
	RecvMaxStreamsBidi() uint64
	SetRecvMaxStreamsBidi(uint64)

	MaxStreamsUni() uint64
	SetMaxStreamsUni(uint64)
	StreamsUni() uint64
	SetStreamsUni(uint64)
	RecvMaxStreamsUni() uint64
	SetRecvMaxStreamsUni(uint64)

	IsServer() bool
	WakeWriteWaiters()

	// NextStreamID receives the next creatable stream id a MAX_STREAMS
	// update just unblocked, packed as ((max-1)<<2)|uni_bit|server_bit
	// per RFC 9000 §2.1. The stream table owns turning this into an
	// actual openable stream; the frame layer only computes the id.
	NextStreamID(id uint64)
}

// CidSet is a connection-ID set collaborator: one instance for our own
// (source) IDs, one for the peer's (destination) IDs.
type CidSet interface {
	LastNumber() uint64
	FirstNumber() uint64
	MaxCount() uint64
	Append(entry ConnIdEntry) error
	Remove(seqno uint64) error
}

// Socket is the minimal slice of connection socket state CONNECTION_CLOSE
// and path validation touch.
type Socket interface {
	SetErr(code int)
	StateChange(state int)
	// RebindActivePath promotes the path's active candidate address to be
	// the live local/peer address and releases the alternate slot. Called
	// once a PATH_RESPONSE confirms a migration we initiated ourselves.
	RebindActivePath()
}

// Random is the cryptographic randomness capability; injected so tests
// can get deterministic output instead of reaching for a global RNG.
type Random interface {
	Read(p []byte) error
}

// PacketCtx exposes the per-packet framing budget STREAM encoding
// saturates against.
type PacketCtx interface {
	MaxPayload() uint64
}

// PathValidator holds outstanding PATH_CHALLENGE entropy for both the
// path we probed ourselves (src) and a path the peer is probing that we
// are echoing (dst), and drives the collaborator-side migration once a
// probe is confirmed.
type PathValidator interface {
	ArmSrc(entropy [8]byte)
	ArmDst(entropy [8]byte)
	MatchSrc(entropy [8]byte) bool
	MatchDst(entropy [8]byte) bool
	Confirm(isSrc bool)
}

// SessionTicketStore holds the most recent TLS NewSessionTicket payload
// a CRYPTO frame delivered post-handshake.
type SessionTicketStore interface {
	SetSessionTicket(data []byte) error
}

// TokenStore holds the most recent address-validation token a
// NEW_TOKEN frame delivered.
type TokenStore interface {
	SetToken(data []byte) error
}

// DecodeContext bundles every collaborator a decoder may touch. Not
// every decoder uses every field — PADDING and PING never touch
// Streams, for instance — so a nil field is fine as long as the frame
// types that would dereference it never appear in that deployment.
type DecodeContext struct {
	PnMap    PnMap
	OutQ     OutQ
	InQ      InQ
	Streams  Streams
	SrcCIDs  CidSet
	DstCIDs  CidSet
	Socket   Socket
	Path     PathValidator
	Rand     Random
	Crypto   SessionTicketStore
	Tokens   TokenStore
	IsServer bool
}
