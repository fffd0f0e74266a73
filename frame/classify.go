package frame

// Per-frame-type classification bits the processing loop folds into
// PacketInfo (§4.7). Built once at init from the three predicates the
// spec states in plain English rather than hand-maintaining three
// literal bit-vectors.
var (
	eliciting  [maxFrameType + 1]bool
	immediate  [maxFrameType + 1]bool
	nonProbing [maxFrameType + 1]bool
)

func init() {
	for t := range eliciting {
		eliciting[t] = true
		nonProbing[t] = true
	}

	// ack_eliciting(t): all types except PADDING, ACK, CONNECTION_CLOSE.
	eliciting[TypePadding] = false
	eliciting[TypeACK] = false
	eliciting[TypeACKECN] = false
	eliciting[TypeConnectionCloseTransport] = false
	eliciting[TypeConnectionCloseApp] = false

	// non_probing(t): all except PATH_CHALLENGE, PATH_RESPONSE,
	// NEW_CONNECTION_ID, PADDING.
	nonProbing[TypePathChallenge] = false
	nonProbing[TypePathResponse] = false
	nonProbing[TypeNewConnectionID] = false
	nonProbing[TypePadding] = false

	// ack_immediate(t): the spec names this list as a minimum ("at
	// minimum: STREAM, RESET_STREAM, STOP_SENDING, HANDSHAKE_DONE,
	// CRYPTO") and leaves the rest to a static classifier table; this
	// core takes that minimum as the complete table (Open Question,
	// resolved in DESIGN.md) rather than guessing at unstated members.
	for t := byte(TypeStreamBase); t < TypeStreamBase+8; t++ {
		immediate[t] = true
	}
	immediate[TypeResetStream] = true
	immediate[TypeStopSending] = true
	immediate[TypeHandshakeDone] = true
	immediate[TypeCrypto] = true
}

// AckEliciting reports whether receiving a frame of type t obligates the
// peer to eventually send an ACK.
func AckEliciting(t byte) bool { return int(t) < len(eliciting) && eliciting[t] }

// AckImmediate reports whether a frame of type t should prompt an ACK
// sooner than the default max-ack-delay schedule allows.
func AckImmediate(t byte) bool { return int(t) < len(immediate) && immediate[t] }

// NonProbing reports whether receiving a frame of type t from a new
// peer address counts as confirming reachability on that path.
func NonProbing(t byte) bool { return int(t) < len(nonProbing) && nonProbing[t] }
