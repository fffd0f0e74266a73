package frame

// Frame type bytes, §4.2/§4.3. STREAM occupies the 0x08-0x0F range;
// the low three bits are the OFF/LEN/FIN subflags rather than a
// distinct type per variant.
const (
	TypePadding                  = 0x00
	TypePing                     = 0x01
	TypeACK                      = 0x02
	TypeACKECN                   = 0x03
	TypeResetStream              = 0x04
	TypeStopSending              = 0x05
	TypeCrypto                   = 0x06
	TypeNewToken                 = 0x07
	TypeStreamBase               = 0x08
	TypeMaxData                  = 0x10
	TypeMaxStreamData            = 0x11
	TypeMaxStreamsBidi           = 0x12
	TypeMaxStreamsUni            = 0x13
	TypeDataBlocked              = 0x14
	TypeStreamDataBlocked        = 0x15
	TypeStreamsBlockedBidi       = 0x16
	TypeStreamsBlockedUni        = 0x17
	TypeNewConnectionID          = 0x18
	TypeRetireConnectionID       = 0x19
	TypePathChallenge            = 0x1A
	TypePathResponse             = 0x1B
	TypeConnectionCloseTransport = 0x1C
	TypeConnectionCloseApp       = 0x1D
	TypeHandshakeDone            = 0x1E

	maxFrameType = 0x1E
)

// STREAM subflag bits, low 3 bits of the type byte.
const (
	StreamFlagFin = 0x01
	StreamFlagLen = 0x02
	StreamFlagOff = 0x04
)

const (
	// CIDLen is the connection-ID length this core mints on
	// NEW_CONNECTION_ID; RFC 9000 allows 1-20. The decoder does not check
	// against it and accepts whatever length the received frame declares.
	CIDLen = 16
	// ResetTokenLen is fixed by RFC 9000 §10.3 at 16 bytes.
	ResetTokenLen = 16
	// MaxGapBlocks bounds the number of ACK gap blocks this core will
	// emit or accept in one frame (the spec's "implementation limit").
	MaxGapBlocks = 16
	// maxClosePhrase bounds CONNECTION_CLOSE reason phrases, NUL included.
	maxClosePhrase = 80
	// ErrnoEPIPE backs the sk_err sign convention CONNECTION_CLOSE sets
	// on decode: a negative errno, matching the teacher's socket-error
	// bookkeeping style.
	ErrnoEPIPE = 32
	// SocketStateUserClosed is the Socket.StateChange value CONNECTION_CLOSE
	// decode reports once the peer has closed the connection.
	SocketStateUserClosed = 1
)

// SendState is the stream send-side lifecycle state a frame decoder may
// push a StreamRef into.
type SendState int

const (
	SendStateOpen SendState = iota
	SendStateResetSent
)

// RecvState is the stream receive-side lifecycle state.
type RecvState int

const (
	RecvStateOpen RecvState = iota
	RecvStateResetRecvd
)

// GapAckBlock is one contiguous range of un-acknowledged packet numbers
// between two ACKed ranges, in the packet-number map's base-relative
// coordinates (start/end are offsets from the map's base_pn, not raw
// packet numbers). ACK encoding walks these from highest to lowest;
// ACK decoding reconstructs them the same way.
type GapAckBlock struct {
	Start uint64
	End   uint64
}

// ErrInfo carries the (stream, error code) pair RESET_STREAM and
// STOP_SENDING pass between the frame layer and its stream collaborator.
type ErrInfo struct {
	StreamID uint64
	ErrCode  uint64
}

// ConnIdEntry is one connection ID plus its stateless reset token, as
// exchanged by NEW_CONNECTION_ID and retired by RETIRE_CONNECTION_ID.
type ConnIdEntry struct {
	SeqNo      uint64
	CID        []byte
	ResetToken [ResetTokenLen]byte
}

// PacketInfo accumulates the per-packet classification ProcessPacket
// folds in as it walks a packet's frames (§4.7).
type PacketInfo struct {
	AckEliciting bool
	AckImmediate bool
	NonProbing   bool
}

// FrameBuf is the encoded or decoded representation of a single frame,
// plus the bookkeeping metadata the retransmission and reassembly
// collaborators need alongside the raw bytes.
type FrameBuf struct {
	data []byte

	FrameType    byte
	Stream       StreamRef
	StreamOffset uint64
	StreamFin    bool
	DataBytes    uint32
	ErrCode      uint64
}

// Bytes returns the encoded frame, type byte included.
func (b *FrameBuf) Bytes() []byte { return b.data }

// Len reports the encoded frame length in bytes.
func (b *FrameBuf) Len() int { return len(b.data) }
