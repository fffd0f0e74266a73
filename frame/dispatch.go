package frame

// decodeFunc is the shape every per-kind decoder satisfies: given the
// collaborator context, the raw type byte (carrying STREAM/CONNECTION_CLOSE
// subflags), and the packet bytes immediately after the type byte, it
// applies side effects and returns bytes consumed or an error.
type decodeFunc func(ctx *DecodeContext, typ byte, b []byte, pki *PacketInfo) (int, error)

// frameKind is the dispatch table entry (§4.3): a fixed array indexed by
// frame-type byte, decode half only. Encoders are called directly by name
// (EncodeACK, EncodeStream, ...) rather than through a parallel table —
// unlike the source's C function-pointer arrays, nothing here needs to
// pick an encoder by a runtime byte value, and a real table would need an
// interface{} payload to paper over the encoders' differing argument
// lists, trading this package's type safety for no benefit.
type frameKind struct {
	decode decodeFunc
	name   string
}

// dispatch is indexed by the raw type byte (0x00-0x1E); decode-side
// STREAM entries (0x08-0x0F) all point at the same function, matching
// §4.3's "STREAM entries all point to the same pair".
var dispatch [maxFrameType + 1]frameKind

func init() {
	dispatch[TypePadding] = frameKind{decodePadding, "padding"}
	dispatch[TypePing] = frameKind{decodePing, "ping"}
	dispatch[TypeACK] = frameKind{decodeACK, "ack"}
	dispatch[TypeACKECN] = frameKind{decodeACK, "ack_ecn"}
	dispatch[TypeResetStream] = frameKind{decodeResetStream, "reset_stream"}
	dispatch[TypeStopSending] = frameKind{decodeStopSending, "stop_sending"}
	dispatch[TypeCrypto] = frameKind{decodeCrypto, "crypto"}
	dispatch[TypeNewToken] = frameKind{decodeNewToken, "new_token"}
	for t := byte(TypeStreamBase); t < TypeStreamBase+8; t++ {
		dispatch[t] = frameKind{decodeStream, "stream"}
	}
	dispatch[TypeMaxData] = frameKind{decodeMaxData, "max_data"}
	dispatch[TypeMaxStreamData] = frameKind{decodeMaxStreamData, "max_stream_data"}
	dispatch[TypeMaxStreamsBidi] = frameKind{decodeMaxStreamsBidi, "max_streams_bidi"}
	dispatch[TypeMaxStreamsUni] = frameKind{decodeMaxStreamsUni, "max_streams_uni"}
	dispatch[TypeDataBlocked] = frameKind{decodeDataBlocked, "data_blocked"}
	dispatch[TypeStreamDataBlocked] = frameKind{decodeStreamDataBlocked, "stream_data_blocked"}
	dispatch[TypeStreamsBlockedBidi] = frameKind{decodeStreamsBlockedBidi, "streams_blocked_bidi"}
	dispatch[TypeStreamsBlockedUni] = frameKind{decodeStreamsBlockedUni, "streams_blocked_uni"}
	dispatch[TypeNewConnectionID] = frameKind{decodeNewConnectionID, "new_connection_id"}
	dispatch[TypeRetireConnectionID] = frameKind{decodeRetireConnectionID, "retire_connection_id"}
	dispatch[TypePathChallenge] = frameKind{decodePathChallenge, "path_challenge"}
	dispatch[TypePathResponse] = frameKind{decodePathResponse, "path_response"}
	dispatch[TypeConnectionCloseTransport] = frameKind{decodeConnectionClose, "connection_close_transport"}
	dispatch[TypeConnectionCloseApp] = frameKind{decodeConnectionClose, "connection_close_app"}
	dispatch[TypeHandshakeDone] = frameKind{decodeHandshakeDone, "handshake_done"}
}

// frameTypeLabel names a frame type for metrics; unused/reserved bytes
// (there are none left in 0x00-0x1E after the table above) would read
// "unknown".
func frameTypeLabel(typ byte) string {
	if int(typ) < len(dispatch) && dispatch[typ].name != "" {
		return dispatch[typ].name
	}
	return "unknown"
}
