package frame

import (
	"errors"
	"fmt"

	"github.com/yourusername/quicframe/metrics"
	"github.com/yourusername/quicframe/quiclog"
)

// ProcessPacket walks every frame in payload in order, dispatching each
// to its decoder and folding the per-frame classification bits into
// pki as it goes (§4.7). It stops at the first error: a short read past
// the last frame boundary or any decoder reporting ErrInvalidFrame is a
// transport PROTOCOL_VIOLATION for the whole packet.
func ProcessPacket(ctx *DecodeContext, payload []byte, pki *PacketInfo) error {
	off := 0
	for off < len(payload) {
		typ := payload[off]
		if int(typ) >= len(dispatch) || dispatch[typ].decode == nil {
			metrics.ProtocolViolations.Inc()
			return fmt.Errorf("process_packet: unknown frame type 0x%02X at offset %d: %w", typ, off, ErrUnsupportedFrame)
		}
		kind := dispatch[typ]

		n, err := kind.decode(ctx, typ, payload[off+1:], pki)
		if err != nil {
			if errors.Is(err, ErrInvalidFrame) {
				metrics.ProtocolViolations.Inc()
			}
			return fmt.Errorf("process_packet: %s at offset %d: %w", kind.name, off, err)
		}

		pki.AckEliciting = pki.AckEliciting || AckEliciting(typ)
		pki.AckImmediate = pki.AckImmediate || AckImmediate(typ)
		pki.NonProbing = pki.NonProbing || NonProbing(typ)

		metrics.FramesDecoded.WithLabelValues(frameTypeLabel(typ)).Inc()
		quiclog.Debug("process_packet: decoded %s, %d bytes at offset %d", kind.name, n+1, off)

		off += 1 + n
	}
	return nil
}
