package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/nearbylink/config"
	"github.com/sage-x-project/nearbylink/health"
	"github.com/sage-x-project/nearbylink/internal/logger"
	"github.com/sage-x-project/nearbylink/internal/metrics"
	"github.com/sage-x-project/nearbylink/session"
	"github.com/sage-x-project/nearbylink/session/statusbus"
)

var (
	configPath  string
	peerAddr    string
	peerIDHex   string
	localName   string
	deviceType  string
	payloadText string
	metricsAddr string
	healthAddr  string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Dial a peer and run one outbound offline-transfer session",
	Example: `  # Connect to a peer already listening on the LAN
  outbound-peer connect --addr 192.168.1.42:7236 --name my-laptop

  # Connect and immediately send a payload once encrypted
  outbound-peer connect --addr 192.168.1.42:7236 --payload "hello peer"`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file (optional)")
	connectCmd.Flags().StringVar(&peerAddr, "addr", "", "Peer TCP address, host:port (required)")
	connectCmd.Flags().StringVar(&peerIDHex, "peer-id", "00000000", "Peer's 4-byte endpoint id, hex-encoded")
	connectCmd.Flags().StringVar(&localName, "name", "nearbylink-peer", "Display name advertised to the remote side")
	connectCmd.Flags().StringVar(&deviceType, "device-type", "laptop", "Device type advertised (phone, laptop, tablet)")
	connectCmd.Flags().StringVar(&payloadText, "payload", "", "If set, sent as a single payload once the session is encrypted")
	connectCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address")
	connectCmd.Flags().StringVar(&healthAddr, "health-addr", "", "If set, serve the health endpoint on this address")
	connectCmd.MarkFlagRequired("addr")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOrDefault()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	peerID, err := decodePeerID(peerIDHex)
	if err != nil {
		return fmt.Errorf("parse --peer-id: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := session.NewManager()
	defer manager.Close()

	if metricsAddr != "" {
		go func() {
			if err := metrics.StartServer(metricsAddr); err != nil {
				logger.Warn("metrics server exited", logger.Error(err))
			}
		}()
	}
	if healthAddr != "" {
		checker := health.NewHealthChecker(cfg.Transport.HandshakeDeadline)
		checker.RegisterCheck("active_sessions", health.SessionManagerHealthCheck(16, func() int {
			return manager.Stats().ActiveSessions
		}))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/healthz", checker.Handler())
			if err := http.ListenAndServe(healthAddr, mux); err != nil {
				logger.Warn("health server exited", logger.Error(err))
			}
		}()
	}

	dialer := net.Dialer{Timeout: cfg.Transport.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", peerAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", peerAddr, err)
	}
	defer conn.Close()

	local := session.NewLocalEndpointBuilder(randomEndpointID()).
		WithName(localName).
		WithDeviceType(parseDeviceType(deviceType)).
		Build()

	hub := statusbus.NewHub()
	s := session.NewOutbound(conn, local, peerID, hub)
	manager.Register(s)

	go func() {
		for ev := range s.Events() {
			fmt.Printf("[%s] phase=%s pin=%s detail=%s\n", ev.SessionID, ev.Phase, ev.PinCode, ev.Detail)
		}
	}()

	if err := s.Start(); err != nil {
		return fmt.Errorf("start handshake: %w", err)
	}

	if payloadText != "" {
		go sendPayloadOnceEncrypted(ctx, s, []byte(payloadText))
	}

	return s.Run(ctx)
}

func sendPayloadOnceEncrypted(ctx context.Context, s *session.Session, body []byte) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Phase() != session.PhaseEncrypted {
				continue
			}
			if err := s.SendPayload(body); err != nil {
				logger.Warn("send payload failed", logger.Error(err))
			}
			return
		}
	}
}

func loadConfigOrDefault() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	cfg := &config.Config{
		Transport: &config.TransportConfig{},
		Identity:  &config.IdentityConfig{},
	}
	// setDefaults is unexported; LoadFromFile applies it. Without a file,
	// only the transport timing defaults it would assign are set here;
	// the other fields stay empty.
	cfg.Transport.DialTimeout = 10 * time.Second
	cfg.Transport.HandshakeDeadline = 15 * time.Second
	cfg.Transport.KeepaliveEvery = 30 * time.Second
	return cfg, nil
}

func decodePeerID(s string) ([4]byte, error) {
	var id [4]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != 4 {
		return id, fmt.Errorf("peer id must decode to exactly 4 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

func randomEndpointID() [4]byte {
	var id [4]byte
	rand.Read(id[:])
	return id
}

func parseDeviceType(s string) session.DeviceType {
	switch s {
	case "phone":
		return session.DeviceTypePhone
	case "tablet":
		return session.DeviceTypeTablet
	case "laptop":
		return session.DeviceTypeLaptop
	default:
		return session.DeviceTypeUnknown
	}
}
