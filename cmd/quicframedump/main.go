package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/quicframe/frame"
	"github.com/yourusername/quicframe/framefakes"
	"github.com/yourusername/quicframe/quiclog"
)

const (
	version = "1.0.0"
	author  = "quicframe"
)

type config struct {
	watch    bool
	interval time.Duration
	logLevel string
}

func main() {
	cfg := &config{}

	root := &cobra.Command{
		Use:     "quicframedump",
		Short:   "Build and process a demo QUIC frame packet against recording collaborators",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	root.Flags().BoolVar(&cfg.watch, "watch", false, "re-run the demo packet on a ticker until interrupted")
	root.Flags().DurationVar(&cfg.interval, "interval", 2*time.Second, "ticker interval in --watch mode")
	root.Flags().StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		quiclog.Fatal("%v", err)
	}
}

func run(cfg *config) error {
	quiclog.Banner("QUIC Frame Dump", version)
	quiclog.SetLevel(cfg.logLevel)

	quiclog.Info("Author: %s", author)
	quiclog.Info("Watch mode: %v", cfg.watch)
	quiclog.Success("Configuration loaded successfully")

	if !cfg.watch {
		return dumpOnce()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	quiclog.Info("Entering watch mode, interval=%s", cfg.interval)
	for {
		select {
		case <-ticker.C:
			if err := dumpOnce(); err != nil {
				quiclog.Warn("demo packet failed: %v", err)
			}
		case sig := <-sigChan:
			quiclog.Warn("Received signal: %v", sig)
			quiclog.Info("Shutting down gracefully...")
			time.Sleep(200 * time.Millisecond)
			quiclog.Success("quicframedump stopped")
			return nil
		}
	}
}

// dumpOnce builds a small in-memory packet (PING, a STREAM carrying a
// short payload, and an ACK covering it) and runs it through
// ProcessPacket against recording collaborator doubles, printing the
// resulting classification and side effects.
func dumpOnce() error {
	quiclog.Section("Building demo packet")

	streams := framefakes.NewStreams(false)
	st := framefakes.NewStream(4)
	streams.Recv[4] = st
	streams.Send[4] = st

	inq := framefakes.NewInQ()
	outq := &framefakes.OutQ{AckDelayExp: 3}
	pnMap := &framefakes.PnMap{MaxPn: 10, MinPn: 0, MaxPnTime: time.Now()}

	ctx := &frame.DecodeContext{
		PnMap:    pnMap,
		OutQ:     outq,
		InQ:      inq,
		Streams:  streams,
		SrcCIDs:  framefakes.NewCidSet(4),
		DstCIDs:  framefakes.NewCidSet(4),
		Socket:   &framefakes.Socket{},
		Path:     &framefakes.PathValidator{},
		Rand:     &framefakes.Random{Seed: 0x42},
		Crypto:   &framefakes.SessionTicketStore{},
		Tokens:   &framefakes.TokenStore{},
		IsServer: false,
	}

	var payload []byte
	appendBuf := func(buf *frame.FrameBuf, err error) error {
		if err != nil {
			return err
		}
		payload = append(payload, buf.Bytes()...)
		return nil
	}

	if err := appendBuf(frame.EncodePing()); err != nil {
		return fmt.Errorf("encode ping: %w", err)
	}
	if err := appendBuf(frame.EncodeStream(&framefakes.PacketCtx{Max: 1200}, st, []byte("hello from quicframedump"), frame.FlagFin)); err != nil {
		return fmt.Errorf("encode stream: %w", err)
	}
	if err := appendBuf(frame.EncodeACK(pnMap, outq, time.Now())); err != nil {
		return fmt.Errorf("encode ack: %w", err)
	}

	quiclog.Info("Demo packet built: %d bytes", len(payload))

	quiclog.Section("Processing demo packet")
	var pki frame.PacketInfo
	if err := frame.ProcessPacket(ctx, payload, &pki); err != nil {
		return fmt.Errorf("process packet: %w", err)
	}

	quiclog.Success("Packet processed cleanly")
	quiclog.Info("ack_eliciting=%v ack_immediate=%v non_probing=%v", pki.AckEliciting, pki.AckImmediate, pki.NonProbing)
	quiclog.Info("stream reassembled fragments: %d", len(inq.Reassembled))
	quiclog.Info("outbound retransmit checks recorded: %d", len(outq.RetransmitCalls))

	return nil
}
