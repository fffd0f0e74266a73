package frame

import (
	"fmt"

	"github.com/yourusername/quicframe/metrics"
	"github.com/yourusername/quicframe/quiclog"
)

// readVarInt reads one varint from the front of b, translating a
// truncated read into ErrInvalidFrame so every decoder can propagate it
// uniformly with %w.
func readVarInt(b []byte) (uint64, int, error) {
	v, n, ok := DecodeVarInt(b)
	if !ok {
		return 0, 0, ErrInvalidFrame
	}
	return v, n, nil
}

func decodePadding(_ *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	n := 0
	for n < len(b) && b[n] == 0 {
		n++
	}
	return n, nil
}

func decodePing(_ *DecodeContext, _ byte, _ []byte, _ *PacketInfo) (int, error) {
	return 0, nil
}

func decodeHandshakeDone(_ *DecodeContext, _ byte, _ []byte, _ *PacketInfo) (int, error) {
	return 0, nil
}

// decodeACK reconstructs the acknowledged packet-number ranges one gap
// block at a time and reports each range to OutQ.RetransmitCheck. Up to
// MaxGapBlocks ranges are accepted; a 17th is a protocol violation
// (§8's "17 gaps (reject on decode)").
func decodeACK(ctx *DecodeContext, typ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0

	largest, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("ack: largest: %w", err)
	}
	off += n

	delay, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("ack: delay: %w", err)
	}
	off += n

	count, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("ack: count: %w", err)
	}
	off += n
	if count > MaxGapBlocks {
		return 0, fmt.Errorf("ack: %d gap blocks exceeds limit %d: %w", count, MaxGapBlocks, ErrInvalidFrame)
	}

	firstRange, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("ack: first range: %w", err)
	}
	off += n
	if firstRange > largest {
		return 0, fmt.Errorf("ack: first range %d exceeds largest %d: %w", firstRange, largest, ErrInvalidFrame)
	}
	smallest := largest - firstRange

	ctx.OutQ.RetransmitCheck(largest, smallest, largest, delay)

	for i := uint64(0); i < count; i++ {
		gap, n, err := readVarInt(b[off:])
		if err != nil {
			return 0, fmt.Errorf("ack: gap[%d]: %w", i, err)
		}
		off += n
		rng, n, err := readVarInt(b[off:])
		if err != nil {
			return 0, fmt.Errorf("ack: range[%d]: %w", i, err)
		}
		off += n

		if gap+2 > smallest {
			return 0, fmt.Errorf("ack: gap %d underflows smallest %d: %w", gap, smallest, ErrInvalidFrame)
		}
		largest = smallest - gap - 2
		if rng > largest {
			return 0, fmt.Errorf("ack: range %d exceeds largest %d: %w", rng, largest, ErrInvalidFrame)
		}
		smallest = largest - rng

		ctx.OutQ.RetransmitCheck(largest, smallest, 0, 0)
	}

	if typ == TypeACKECN {
		for i := 0; i < 3; i++ {
			_, n, err := readVarInt(b[off:])
			if err != nil {
				return 0, fmt.Errorf("ack: ecn count[%d]: %w", i, err)
			}
			off += n
		}
		// TODO: ECN counts are read and discarded; this core does no ECN
		// accounting. Preserved per design note, surfaced as a metric.
		metrics.ACKEcnCountsDiscarded.Inc()
	}

	return off, nil
}

func decodeResetStream(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	streamID, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("reset_stream: stream id: %w", err)
	}
	off += n
	errCode, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("reset_stream: error code: %w", err)
	}
	off += n
	finalSize, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("reset_stream: final size: %w", err)
	}
	off += n

	stream, err := ctx.Streams.RecvGet(streamID, ctx.IsServer)
	if err != nil {
		return 0, fmt.Errorf("reset_stream: %w", ErrInvalidFrame)
	}
	quiclog.Debug("reset_stream: stream=%d errcode=%d final_size=%d", streamID, errCode, finalSize)
	stream.SetRecvState(RecvStateResetRecvd)
	return off, nil
}

// decodeStopSending processes STOP_SENDING and, per §4.5, emits a
// reciprocal RESET_STREAM for the same stream and error code.
func decodeStopSending(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	streamID, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("stop_sending: stream id: %w", err)
	}
	off += n
	errCode, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("stop_sending: error code: %w", err)
	}
	off += n

	stream, err := ctx.Streams.SendGet(streamID)
	if err != nil {
		return 0, fmt.Errorf("stop_sending: %w", ErrInvalidFrame)
	}

	buf, err := EncodeResetStream(ctx.Streams, stream, errCode)
	if err != nil {
		return 0, fmt.Errorf("stop_sending: reciprocal reset_stream: %w", err)
	}
	if err := ctx.OutQ.CtrlTail(buf, false); err != nil {
		return 0, fmt.Errorf("stop_sending: ctrl_tail: %w", ErrNoMemory)
	}

	stream.SetSendState(SendStateResetSent)
	return off, nil
}

// decodeCrypto only accepts post-handshake session-ticket CRYPTO:
// offset must be zero and the first payload byte must be the TLS
// NewSessionTicket message type (4).
func decodeCrypto(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	offset, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("crypto: offset: %w", err)
	}
	off += n
	if offset != 0 {
		return 0, fmt.Errorf("crypto: non-zero offset %d: %w", offset, ErrInvalidFrame)
	}

	length, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("crypto: length: %w", err)
	}
	off += n
	if uint64(len(b)-off) < length {
		return 0, fmt.Errorf("crypto: length %d exceeds remaining %d: %w", length, len(b)-off, ErrInvalidFrame)
	}
	if length == 0 || b[off] != 4 {
		return 0, fmt.Errorf("crypto: not a NewSessionTicket message: %w", ErrInvalidFrame)
	}

	data := append([]byte(nil), b[off:off+int(length)]...)
	off += int(length)

	if ctx.Crypto != nil {
		if err := ctx.Crypto.SetSessionTicket(data); err != nil {
			return 0, fmt.Errorf("crypto: %w", ErrNoMemory)
		}
	}
	return off, nil
}

func decodeNewToken(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	length, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("new_token: length: %w", err)
	}
	off += n
	if uint64(len(b)-off) < length {
		return 0, fmt.Errorf("new_token: length %d exceeds remaining %d: %w", length, len(b)-off, ErrInvalidFrame)
	}

	data := append([]byte(nil), b[off:off+int(length)]...)
	off += int(length)

	if ctx.Tokens != nil {
		if err := ctx.Tokens.SetToken(data); err != nil {
			return 0, fmt.Errorf("new_token: %w", ErrNoMemory)
		}
	}
	return off, nil
}

// decodeStream handles all of 0x08-0x0F; typ carries the OFF/LEN/FIN
// subflags. The payload is cloned into a fresh buffer before being
// handed to InQ.ReasmTail, since the source packet buffer may be reused
// or freed once the frame loop moves on.
func decodeStream(ctx *DecodeContext, typ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	streamID, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("stream: stream id: %w", err)
	}
	off += n

	var offset uint64
	if typ&StreamFlagOff != 0 {
		offset, n, err = readVarInt(b[off:])
		if err != nil {
			return 0, fmt.Errorf("stream: offset: %w", err)
		}
		off += n
	}

	var payloadLen uint64
	if typ&StreamFlagLen != 0 {
		payloadLen, n, err = readVarInt(b[off:])
		if err != nil {
			return 0, fmt.Errorf("stream: length: %w", err)
		}
		off += n
		if uint64(len(b)-off) < payloadLen {
			return 0, fmt.Errorf("stream: length %d exceeds remaining %d: %w", payloadLen, len(b)-off, ErrInvalidFrame)
		}
	} else {
		payloadLen = uint64(len(b) - off)
	}

	stream, err := ctx.Streams.RecvGet(streamID, ctx.IsServer)
	if err != nil {
		return 0, fmt.Errorf("stream: %w", ErrInvalidFrame)
	}

	payload := append([]byte(nil), b[off:off+int(payloadLen)]...)
	off += int(payloadLen)

	buf := &FrameBuf{
		data:         payload,
		FrameType:    typ,
		Stream:       stream,
		StreamOffset: offset,
		StreamFin:    typ&StreamFlagFin != 0,
		DataBytes:    uint32(payloadLen),
	}
	if err := ctx.InQ.ReasmTail(buf); err != nil {
		return 0, fmt.Errorf("stream: reasm_tail: %w", ErrNoMemory)
	}
	return off, nil
}

func decodeMaxData(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	maxBytes, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("max_data: %w", err)
	}
	if maxBytes >= ctx.OutQ.MaxBytes() {
		ctx.OutQ.SetMaxBytes(maxBytes)
		ctx.OutQ.SetDataBlocked(false)
	}
	return n, nil
}

func decodeMaxStreamData(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	streamID, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("max_stream_data: stream id: %w", err)
	}
	off += n
	maxBytes, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("max_stream_data: max bytes: %w", err)
	}
	off += n

	stream, err := ctx.Streams.SendGet(streamID)
	if err != nil {
		return 0, fmt.Errorf("max_stream_data: %w", ErrInvalidFrame)
	}
	if maxBytes >= stream.SendMaxBytes() {
		stream.SetSendMaxBytes(maxBytes)
		stream.SetSendDataBlocked(false)
	}
	return off, nil
}

func decodeMaxStreamsKind(ctx *DecodeContext, b []byte, uni bool) (int, error) {
	max, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("max_streams: %w", err)
	}

	var current uint64
	if uni {
		current = ctx.Streams.MaxStreamsUni()
	} else {
		current = ctx.Streams.MaxStreamsBidi()
	}
	if max >= current {
		if uni {
			ctx.Streams.SetMaxStreamsUni(max)
			ctx.Streams.SetStreamsUni(max)
		} else {
			ctx.Streams.SetMaxStreamsBidi(max)
			ctx.Streams.SetStreamsBidi(max)
		}
		if max > 0 {
			var uniBit, serverBit uint64
			if uni {
				uniBit = 0x02
			}
			if ctx.Streams.IsServer() {
				serverBit = 0x01
			}
			ctx.Streams.NextStreamID(((max - 1) << 2) | uniBit | serverBit)
		}
		ctx.Streams.WakeWriteWaiters()
	}
	return n, nil
}

func decodeMaxStreamsBidi(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	return decodeMaxStreamsKind(ctx, b, false)
}

func decodeMaxStreamsUni(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	return decodeMaxStreamsKind(ctx, b, true)
}

// decodeDataBlocked advances our own receive window and emits MAX_DATA
// in response, rolling the window back if the emit fails (§4.5/§7).
func decodeDataBlocked(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	limit, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("data_blocked: %w", err)
	}
	quiclog.Debug("data_blocked: peer limit=%d", limit)

	prev := ctx.InQ.MaxBytes()
	newMax := ctx.InQ.Bytes() + ctx.InQ.Window()
	ctx.InQ.SetMaxBytes(newMax)

	buf, err := EncodeMaxData(newMax)
	if err != nil {
		ctx.InQ.SetMaxBytes(prev)
		return 0, fmt.Errorf("data_blocked: %w", ErrNoMemory)
	}
	if err := ctx.OutQ.CtrlTail(buf, false); err != nil {
		ctx.InQ.SetMaxBytes(prev)
		return 0, fmt.Errorf("data_blocked: ctrl_tail: %w", ErrNoMemory)
	}
	return n, nil
}

func decodeStreamDataBlocked(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	streamID, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("stream_data_blocked: stream id: %w", err)
	}
	off += n
	limit, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("stream_data_blocked: limit: %w", err)
	}
	off += n

	stream, err := ctx.Streams.RecvGet(streamID, ctx.IsServer)
	if err != nil {
		return 0, fmt.Errorf("stream_data_blocked: %w", ErrInvalidFrame)
	}
	quiclog.Debug("stream_data_blocked: stream=%d peer limit=%d", streamID, limit)

	prev := stream.RecvMaxBytes()
	newMax := stream.RecvBytes() + stream.RecvWindow()
	if newMax == prev {
		return off, nil
	}
	stream.SetRecvMaxBytes(newMax)

	buf, err := EncodeMaxStreamData(stream, newMax)
	if err != nil {
		stream.SetRecvMaxBytes(prev)
		return 0, fmt.Errorf("stream_data_blocked: %w", ErrNoMemory)
	}
	if err := ctx.OutQ.CtrlTail(buf, false); err != nil {
		stream.SetRecvMaxBytes(prev)
		return 0, fmt.Errorf("stream_data_blocked: ctrl_tail: %w", ErrNoMemory)
	}
	return off, nil
}

func decodeStreamsBlockedKind(ctx *DecodeContext, b []byte, uni bool) (int, error) {
	declaredMax, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("streams_blocked: %w", err)
	}

	var current uint64
	if uni {
		current = ctx.Streams.RecvMaxStreamsUni()
	} else {
		current = ctx.Streams.RecvMaxStreamsBidi()
	}
	if declaredMax >= current {
		var buf *FrameBuf
		var encErr error
		if uni {
			buf, encErr = EncodeMaxStreamsUni(declaredMax)
		} else {
			buf, encErr = EncodeMaxStreamsBidi(declaredMax)
		}
		if encErr != nil {
			return 0, fmt.Errorf("streams_blocked: %w", ErrNoMemory)
		}
		if err := ctx.OutQ.CtrlTail(buf, false); err != nil {
			return 0, fmt.Errorf("streams_blocked: ctrl_tail: %w", ErrNoMemory)
		}
		if uni {
			ctx.Streams.SetRecvMaxStreamsUni(declaredMax)
		} else {
			ctx.Streams.SetRecvMaxStreamsBidi(declaredMax)
		}
	}
	return n, nil
}

func decodeStreamsBlockedBidi(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	return decodeStreamsBlockedKind(ctx, b, false)
}

func decodeStreamsBlockedUni(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	return decodeStreamsBlockedKind(ctx, b, true)
}

// decodeNewConnectionID validates the monotone seqno sequence, appends
// the new entry to the destination CID set, and — for every seqno the
// frame's retire_prior_to implicitly obsoletes — enqueues a reciprocal
// RETIRE_CONNECTION_ID (§8 scenario 5).
func decodeNewConnectionID(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	seqno, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("new_connection_id: seqno: %w", err)
	}
	off += n
	prior, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("new_connection_id: prior: %w", err)
	}
	off += n
	length, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("new_connection_id: length: %w", err)
	}
	off += n

	need := length + ResetTokenLen
	if uint64(len(b)-off) < need {
		return 0, fmt.Errorf("new_connection_id: need %d bytes, have %d: %w", need, len(b)-off, ErrInvalidFrame)
	}
	if seqno != ctx.DstCIDs.LastNumber()+1 {
		return 0, fmt.Errorf("new_connection_id: seqno %d is not last+1: %w", seqno, ErrInvalidFrame)
	}
	if prior > seqno {
		return 0, fmt.Errorf("new_connection_id: prior %d exceeds seqno %d: %w", prior, seqno, ErrInvalidFrame)
	}

	cid := append([]byte(nil), b[off:off+int(length)]...)
	off += int(length)
	var resetToken [ResetTokenLen]byte
	copy(resetToken[:], b[off:off+ResetTokenLen])
	off += ResetTokenLen

	entry := ConnIdEntry{SeqNo: seqno, CID: cid, ResetToken: resetToken}
	if err := ctx.DstCIDs.Append(entry); err != nil {
		return 0, fmt.Errorf("new_connection_id: %w", ErrNoMemory)
	}

	firstSeqno := ctx.DstCIDs.FirstNumber()
	for seq := firstSeqno; seq < prior; seq++ {
		rbuf, err := EncodeRetireConnectionID(ctx.DstCIDs, seq)
		if err != nil {
			return 0, fmt.Errorf("new_connection_id: reciprocal retire: %w", err)
		}
		if err := ctx.OutQ.CtrlTail(rbuf, false); err != nil {
			return 0, fmt.Errorf("new_connection_id: ctrl_tail: %w", ErrNoMemory)
		}
	}
	return off, nil
}

// decodeRetireConnectionID requires the peer retire CIDs in order from
// the bottom of our source set, and never the last remaining one. If
// room remains under max_count, it replenishes the set with a fresh
// NEW_CONNECTION_ID.
func decodeRetireConnectionID(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	seqno, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("retire_connection_id: seqno: %w", err)
	}

	if seqno != ctx.SrcCIDs.FirstNumber() {
		return 0, fmt.Errorf("retire_connection_id: seqno %d is not first %d: %w", seqno, ctx.SrcCIDs.FirstNumber(), ErrInvalidFrame)
	}
	if seqno == ctx.SrcCIDs.LastNumber() {
		return 0, fmt.Errorf("retire_connection_id: cannot retire the only active seqno %d: %w", seqno, ErrInvalidFrame)
	}
	if err := ctx.SrcCIDs.Remove(seqno); err != nil {
		return 0, fmt.Errorf("retire_connection_id: %w", ErrNoMemory)
	}

	if ctx.SrcCIDs.LastNumber()-seqno < ctx.SrcCIDs.MaxCount() {
		nbuf, err := EncodeNewConnectionID(ctx.SrcCIDs, ctx.Rand)
		if err != nil {
			return 0, fmt.Errorf("retire_connection_id: reciprocal new: %w", err)
		}
		if err := ctx.OutQ.CtrlTail(nbuf, false); err != nil {
			return 0, fmt.Errorf("retire_connection_id: ctrl_tail: %w", ErrNoMemory)
		}
	}
	return n, nil
}

func decodePathChallenge(ctx *DecodeContext, _ byte, b []byte, _ *PacketInfo) (int, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("path_challenge: need 8 bytes, have %d: %w", len(b), ErrInvalidFrame)
	}
	var entropy [8]byte
	copy(entropy[:], b[:8])

	buf, err := EncodePathResponse(entropy)
	if err != nil {
		return 0, fmt.Errorf("path_challenge: reciprocal response: %w", err)
	}
	if err := ctx.OutQ.CtrlTail(buf, true); err != nil {
		return 0, fmt.Errorf("path_challenge: ctrl_tail: %w", ErrNoMemory)
	}
	return 8, nil
}

// decodePathResponse matches the received entropy against both the path
// we're probing ourselves (src) and a path the peer is probing that we
// echoed (dst). A src-side match confirms our own migration and rebinds
// the socket to the new path; a dst-side match only confirms the peer's
// reachability and marks the frame non-probing (§4.5/§4.7).
func decodePathResponse(ctx *DecodeContext, _ byte, b []byte, pki *PacketInfo) (int, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("path_response: need 8 bytes, have %d: %w", len(b), ErrInvalidFrame)
	}
	var entropy [8]byte
	copy(entropy[:], b[:8])

	if ctx.Path != nil {
		switch {
		case ctx.Path.MatchSrc(entropy):
			ctx.Path.Confirm(true)
			if ctx.Socket != nil {
				ctx.Socket.RebindActivePath()
			}
		case ctx.Path.MatchDst(entropy):
			ctx.Path.Confirm(false)
			pki.NonProbing = true
		}
	}
	return 8, nil
}

// decodeConnectionClose applies CONNECTION_CLOSE's USER_CLOSED transition
// regardless of whether the frame carried a transport or application
// error code.
func decodeConnectionClose(ctx *DecodeContext, typ byte, b []byte, _ *PacketInfo) (int, error) {
	off := 0
	errCode, n, err := readVarInt(b)
	if err != nil {
		return 0, fmt.Errorf("connection_close: error code: %w", err)
	}
	off += n

	var frameType uint64
	if typ == TypeConnectionCloseTransport {
		frameType, n, err = readVarInt(b[off:])
		if err != nil {
			return 0, fmt.Errorf("connection_close: frame type: %w", err)
		}
		off += n
	}

	phraseLen, n, err := readVarInt(b[off:])
	if err != nil {
		return 0, fmt.Errorf("connection_close: phrase length: %w", err)
	}
	off += n
	if phraseLen > maxClosePhrase {
		return 0, fmt.Errorf("connection_close: phrase length %d exceeds %d: %w", phraseLen, maxClosePhrase, ErrInvalidFrame)
	}
	if uint64(len(b)-off) < phraseLen {
		return 0, fmt.Errorf("connection_close: phrase length %d exceeds remaining %d: %w", phraseLen, len(b)-off, ErrInvalidFrame)
	}
	if phraseLen > 0 && b[off+int(phraseLen)-1] != 0 {
		return 0, fmt.Errorf("connection_close: phrase missing trailing NUL: %w", ErrInvalidFrame)
	}
	off += int(phraseLen)

	quiclog.Warn("connection_close received: code=%d triggering_frame=0x%02X", errCode, frameType)
	if ctx.Socket != nil {
		ctx.Socket.StateChange(SocketStateUserClosed)
		// Sign convention matches the teacher's socket-error bookkeeping:
		// a negative errno. Confirm this against the real socket layer
		// before wiring a live collaborator (§9).
		ctx.Socket.SetErr(-ErrnoEPIPE)
	}
	return off, nil
}
