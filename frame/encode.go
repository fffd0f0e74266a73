package frame

import (
	"fmt"
	"time"

	"github.com/yourusername/quicframe/metrics"
)

// EncodePadding writes frameLen zero bytes followed by a single PADDING
// type byte (also zero); the whole thing collapses into one frameLen+1
// byte run that decodePadding reads back as a single logical frame.
func EncodePadding(frameLen int) (*FrameBuf, error) {
	var w frameWriter
	for i := 0; i < frameLen; i++ {
		w.WriteByte(0)
	}
	w.WriteByte(TypePadding)
	return newFrameBuf(&w, TypePadding), nil
}

// EncodePing writes a single PING type byte.
func EncodePing() (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypePing)
	return newFrameBuf(&w, TypePing), nil
}

// EncodeHandshakeDone writes a single HANDSHAKE_DONE type byte.
func EncodeHandshakeDone() (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeHandshakeDone)
	return newFrameBuf(&w, TypeHandshakeDone), nil
}

// EncodeACK builds an ACK frame from the packet-number map's current
// state: largest/smallest bounds plus up to MaxGapBlocks gap blocks,
// walked from highest to lowest as §4.4 specifies. now is the caller's
// notion of the current time, injected so tests get a deterministic
// ACK Delay.
func EncodeACK(pnMap PnMap, outq OutQ, now time.Time) (*FrameBuf, error) {
	largest := pnMap.MaxPnSeen()

	var gaps [MaxGapBlocks]GapAckBlock
	numGaps := pnMap.GapBlocks(gaps[:])
	if numGaps > MaxGapBlocks {
		numGaps = MaxGapBlocks
	}

	delay := uint64(now.Sub(pnMap.MaxPnTimestamp()).Microseconds()) >> outq.AckDelayExponent()

	var firstRange uint64
	if numGaps == 0 {
		firstRange = largest - pnMap.MinPnSeen()
	} else {
		firstRange = largest - gaps[numGaps-1].End - 1
	}

	var w frameWriter
	w.WriteByte(TypeACK)
	w.WriteVarInt(largest)
	w.WriteVarInt(delay)
	w.WriteVarInt(uint64(numGaps))
	w.WriteVarInt(firstRange)

	for i := numGaps - 1; i >= 0; i-- {
		gapVal := gaps[i].End - gaps[i].Start
		var rangeVal uint64
		if i == 0 {
			rangeVal = gaps[0].Start - 2
		} else {
			rangeVal = gaps[i].Start - gaps[i-1].End - 2
		}
		w.WriteVarInt(gapVal)
		w.WriteVarInt(rangeVal)
	}

	metrics.ObserveGapBlocks(numGaps)
	return newFrameBuf(&w, TypeACK), nil
}

// EncodeResetStream writes RESET_STREAM for stream with the given error
// code, tagging final_size with the stream's current send offset. If
// stream is the table's active send stream, clears that slot so another
// stream may take over (§4.4).
func EncodeResetStream(streams Streams, stream StreamRef, errCode uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeResetStream)
	w.WriteVarInt(stream.ID())
	w.WriteVarInt(errCode)
	w.WriteVarInt(stream.SendOffset())

	if active, ok := streams.ActiveSendStream(); ok && active == stream.ID() {
		streams.ClearActiveSendStream()
	}

	buf := newFrameBuf(&w, TypeResetStream)
	buf.Stream = stream
	buf.ErrCode = errCode
	return buf, nil
}

// EncodeStopSending writes STOP_SENDING for stream with the given error
// code.
func EncodeStopSending(stream StreamRef, errCode uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeStopSending)
	w.WriteVarInt(stream.ID())
	w.WriteVarInt(errCode)
	buf := newFrameBuf(&w, TypeStopSending)
	buf.Stream = stream
	buf.ErrCode = errCode
	return buf, nil
}

// EncodeCrypto writes a CRYPTO frame carrying data at offset 0. This
// core only ever emits post-handshake session-ticket CRYPTO, so the
// offset field is always zero.
func EncodeCrypto(data []byte) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeCrypto)
	w.WriteVarInt(0)
	w.WriteVarInt(uint64(len(data)))
	w.Write(data)
	buf := newFrameBuf(&w, TypeCrypto)
	buf.DataBytes = uint32(len(data))
	return buf, nil
}

// EncodeNewToken writes a NEW_TOKEN frame carrying data.
func EncodeNewToken(data []byte) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeNewToken)
	w.WriteVarInt(uint64(len(data)))
	w.Write(data)
	buf := newFrameBuf(&w, TypeNewToken)
	buf.DataBytes = uint32(len(data))
	return buf, nil
}

// FlagFin asks EncodeStream to set the STREAM FIN bit, provided the
// entire remaining message fits in the packet budget.
const FlagFin = 0x01

// EncodeStream writes a STREAM frame carrying as much of data as fits
// within pctx's packet payload budget. OFF is set iff the stream's send
// offset is already non-zero; LEN is always set; FIN is set only when
// the caller asked for it and the whole of data fit without truncation
// (a frame that saturates the packet budget always has FIN cleared,
// regardless of what the caller requested). On success, advances the
// stream's send offset by the number of payload bytes actually written.
func EncodeStream(pctx PacketCtx, stream StreamRef, data []byte, flags int) (*FrameBuf, error) {
	offset := stream.SendOffset()

	typ := byte(TypeStreamBase) | StreamFlagLen
	if offset > 0 {
		typ |= StreamFlagOff
	}

	headerLen := 1 + VarIntLen(stream.ID())
	if offset > 0 {
		headerLen += VarIntLen(offset)
	}

	maxPayload := int(pctx.MaxPayload())
	available := maxPayload - headerLen - VarIntLen(uint64(len(data)))
	if available < 0 {
		available = 0
	}

	payload := data
	fin := false
	if available < len(data) {
		payload = data[:available]
	} else if flags&FlagFin != 0 {
		fin = true
	}
	if fin {
		typ |= StreamFlagFin
	}

	var w frameWriter
	w.WriteByte(typ)
	w.WriteVarInt(stream.ID())
	if offset > 0 {
		w.WriteVarInt(offset)
	}
	w.WriteVarInt(uint64(len(payload)))
	w.Write(payload)

	stream.SetSendOffset(offset + uint64(len(payload)))

	buf := newFrameBuf(&w, typ)
	buf.Stream = stream
	buf.StreamOffset = offset
	buf.StreamFin = fin
	buf.DataBytes = uint32(len(payload))
	return buf, nil
}

// EncodeMaxData writes a MAX_DATA frame carrying the connection-level
// receive bound.
func EncodeMaxData(maxBytes uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeMaxData)
	w.WriteVarInt(maxBytes)
	return newFrameBuf(&w, TypeMaxData), nil
}

// EncodeMaxStreamData writes a MAX_STREAM_DATA frame for stream.
func EncodeMaxStreamData(stream StreamRef, maxBytes uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeMaxStreamData)
	w.WriteVarInt(stream.ID())
	w.WriteVarInt(maxBytes)
	buf := newFrameBuf(&w, TypeMaxStreamData)
	buf.Stream = stream
	return buf, nil
}

// EncodeMaxStreamsBidi writes a MAX_STREAMS frame for the bidirectional
// stream count limit.
func EncodeMaxStreamsBidi(max uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeMaxStreamsBidi)
	w.WriteVarInt(max)
	return newFrameBuf(&w, TypeMaxStreamsBidi), nil
}

// EncodeMaxStreamsUni writes a MAX_STREAMS frame for the unidirectional
// stream count limit.
func EncodeMaxStreamsUni(max uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeMaxStreamsUni)
	w.WriteVarInt(max)
	return newFrameBuf(&w, TypeMaxStreamsUni), nil
}

// EncodeDataBlocked writes a DATA_BLOCKED frame carrying the sender's
// current connection-level send limit.
func EncodeDataBlocked(limit uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeDataBlocked)
	w.WriteVarInt(limit)
	return newFrameBuf(&w, TypeDataBlocked), nil
}

// EncodeStreamDataBlocked writes a STREAM_DATA_BLOCKED frame for stream.
func EncodeStreamDataBlocked(stream StreamRef, limit uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeStreamDataBlocked)
	w.WriteVarInt(stream.ID())
	w.WriteVarInt(limit)
	buf := newFrameBuf(&w, TypeStreamDataBlocked)
	buf.Stream = stream
	return buf, nil
}

// streamsBlockedValue mirrors the source's (limit>>2)+1 encoding
// verbatim. RFC 9000 §19.14 defines the MAX_STREAMS/STREAMS_BLOCKED
// value as a stream *count*, not a stream *id*, so this looks like a
// stream-id-to-count conversion applied where a count was already
// expected (flagged in §9 as suspicious). Preserved as specified rather
// than silently corrected; verify against the wire before real interop.
func streamsBlockedValue(limit uint64) uint64 { return (limit >> 2) + 1 }

// EncodeStreamsBlockedBidi writes a STREAMS_BLOCKED frame for the
// bidirectional stream count limit.
func EncodeStreamsBlockedBidi(limit uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeStreamsBlockedBidi)
	w.WriteVarInt(streamsBlockedValue(limit))
	return newFrameBuf(&w, TypeStreamsBlockedBidi), nil
}

// EncodeStreamsBlockedUni writes a STREAMS_BLOCKED frame for the
// unidirectional stream count limit.
func EncodeStreamsBlockedUni(limit uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeStreamsBlockedUni)
	w.WriteVarInt(streamsBlockedValue(limit))
	return newFrameBuf(&w, TypeStreamsBlockedUni), nil
}

// EncodeNewConnectionID mints a fresh connection ID and stateless reset
// token for src, appends it to src (the encoder-side side effect must
// commit before the frame is returned), and writes the NEW_CONNECTION_ID
// frame with retire_prior_to left at 0 (no forced retirement).
func EncodeNewConnectionID(src CidSet, rnd Random) (*FrameBuf, error) {
	return EncodeNewConnectionIDWithPrior(src, rnd, 0)
}

// EncodeNewConnectionIDWithPrior is EncodeNewConnectionID with an
// explicit retire_prior_to value, used when the caller wants to force
// the peer to retire older connection IDs as part of this frame.
func EncodeNewConnectionIDWithPrior(src CidSet, rnd Random, prior uint64) (*FrameBuf, error) {
	seqno := src.LastNumber() + 1

	cid := make([]byte, CIDLen)
	if err := rnd.Read(cid); err != nil {
		return nil, fmt.Errorf("new_connection_id: %w", ErrNoMemory)
	}
	var resetToken [ResetTokenLen]byte
	if err := rnd.Read(resetToken[:]); err != nil {
		return nil, fmt.Errorf("new_connection_id: %w", ErrNoMemory)
	}

	var w frameWriter
	w.WriteByte(TypeNewConnectionID)
	w.WriteVarInt(seqno)
	w.WriteVarInt(prior)
	w.WriteVarInt(CIDLen)
	w.Write(cid)
	w.Write(resetToken[:])

	entry := ConnIdEntry{SeqNo: seqno, CID: cid, ResetToken: resetToken}
	if err := src.Append(entry); err != nil {
		return nil, fmt.Errorf("new_connection_id: %w", ErrNoMemory)
	}

	return newFrameBuf(&w, TypeNewConnectionID), nil
}

// EncodeRetireConnectionID writes RETIRE_CONNECTION_ID for seqno and, as
// the encoder-side side effect, removes seqno from dst so it no longer
// appears in the destination connection-ID set once the frame is
// returned.
func EncodeRetireConnectionID(dst CidSet, seqno uint64) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypeRetireConnectionID)
	w.WriteVarInt(seqno)

	if err := dst.Remove(seqno); err != nil {
		return nil, fmt.Errorf("retire_connection_id: %w", ErrNoMemory)
	}

	return newFrameBuf(&w, TypeRetireConnectionID), nil
}

// EncodePathChallenge generates fresh entropy, arms path's src-side probe
// slot with it, and writes the PATH_CHALLENGE frame.
func EncodePathChallenge(path PathValidator, rnd Random) (*FrameBuf, error) {
	var entropy [8]byte
	if err := rnd.Read(entropy[:]); err != nil {
		return nil, fmt.Errorf("path_challenge: %w", ErrNoMemory)
	}
	path.ArmSrc(entropy)

	var w frameWriter
	w.WriteByte(TypePathChallenge)
	w.Write(entropy[:])
	return newFrameBuf(&w, TypePathChallenge), nil
}

// StartPeerPathValidation issues our own PATH_CHALLENGE toward a path the
// peer appears to have migrated to, arming path's dst-side probe slot so
// a matching PATH_RESPONSE is recognized by decodePathResponse as
// confirming the peer's new path rather than our own.
func StartPeerPathValidation(path PathValidator, rnd Random) (*FrameBuf, error) {
	var entropy [8]byte
	if err := rnd.Read(entropy[:]); err != nil {
		return nil, fmt.Errorf("path_challenge: %w", ErrNoMemory)
	}
	path.ArmDst(entropy)

	var w frameWriter
	w.WriteByte(TypePathChallenge)
	w.Write(entropy[:])
	return newFrameBuf(&w, TypePathChallenge), nil
}

// EncodePathResponse writes a PATH_RESPONSE echoing entropy back, which
// must be the 8 bytes taken verbatim from the triggering PATH_CHALLENGE.
func EncodePathResponse(entropy [8]byte) (*FrameBuf, error) {
	var w frameWriter
	w.WriteByte(TypePathResponse)
	w.Write(entropy[:])
	return newFrameBuf(&w, TypePathResponse), nil
}

// EncodeConnectionCloseTransport writes a transport-level CONNECTION_CLOSE
// (type 0x1C), which additionally carries the frame type that triggered
// the close.
func EncodeConnectionCloseTransport(errCode, closeFrameType uint64, phrase string) (*FrameBuf, error) {
	return encodeConnectionClose(TypeConnectionCloseTransport, errCode, closeFrameType, phrase)
}

// EncodeConnectionCloseApp writes an application-level CONNECTION_CLOSE
// (type 0x1D).
func EncodeConnectionCloseApp(errCode uint64, phrase string) (*FrameBuf, error) {
	return encodeConnectionClose(TypeConnectionCloseApp, errCode, 0, phrase)
}

func encodeConnectionClose(typ byte, errCode, closeFrameType uint64, phrase string) (*FrameBuf, error) {
	var phraseBytes []byte
	if phrase != "" {
		phraseBytes = append([]byte(phrase), 0)
	}
	if len(phraseBytes) > maxClosePhrase {
		return nil, fmt.Errorf("connection_close: phrase length %d exceeds %d: %w", len(phraseBytes), maxClosePhrase, ErrInvalidFrame)
	}

	var w frameWriter
	w.WriteByte(typ)
	w.WriteVarInt(errCode)
	if typ == TypeConnectionCloseTransport {
		w.WriteVarInt(closeFrameType)
	}
	w.WriteVarInt(uint64(len(phraseBytes)))
	w.Write(phraseBytes)

	buf := newFrameBuf(&w, typ)
	buf.ErrCode = errCode
	return buf, nil
}
