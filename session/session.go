// Package session drives the outbound peer connection's state machine:
// connection request, UKEY2 handshake, and the encrypted application
// loop, multiplexed against a shared control channel.
package session

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/nearbylink/cryptocore"
	"github.com/sage-x-project/nearbylink/envelope"
	"github.com/sage-x-project/nearbylink/internal/logger"
	"github.com/sage-x-project/nearbylink/internal/metrics"
	"github.com/sage-x-project/nearbylink/proto"
	"github.com/sage-x-project/nearbylink/session/statusbus"
	"github.com/sage-x-project/nearbylink/ukey2"
	"github.com/sage-x-project/nearbylink/wire"
)

// StatusEvent is published on Events() when the session starts, completes
// the handshake, receives a keepalive or payload frame, is cancelled, or
// terminates. The intermediate SentClientFinish phase is not published on
// its own.
type StatusEvent struct {
	SessionID string
	Phase     Phase
	PinCode   string
	Detail    string
}

// Session is the per-connection aggregate: exactly one TCP stream, one
// state record, one subscription to the shared control bus. It runs on
// a single logical task; it never aliases its state to another
// goroutine.
type Session struct {
	id   string
	conn net.Conn
	r    *bufio.Reader

	hub     *statusbus.Hub
	control <-chan statusbus.Message
	unsub   func()
	events  chan StatusEvent

	local LocalEndpoint
	peer  [4]byte

	state State
	hs    *ukey2.Handshake
	env   *envelope.Envelope
}

// NewOutbound constructs a Session bound to an already-dialed TCP stream,
// identified by the caller-supplied local endpoint and the peer's
// discovered 4-byte endpoint id. hub is the shared control-channel bus;
// the Session subscribes to it for the lifetime of the session.
func NewOutbound(conn net.Conn, local LocalEndpoint, peerEndpointID [4]byte, hub *statusbus.Hub) *Session {
	id := uuid.NewString()
	ch, unsub := hub.Subscribe()
	return &Session{
		id:      id,
		conn:    conn,
		r:       bufio.NewReader(conn),
		hub:     hub,
		control: ch,
		unsub:   unsub,
		events:  make(chan StatusEvent, 16),
		local:   local,
		peer:    peerEndpointID,
		state:   State{ID: id, Phase: PhaseInitial, EndpointID: local.ID},
		hs:      ukey2.New(),
	}
}

// ID returns the session's UUID.
func (s *Session) ID() string { return s.id }

// Phase returns the session's current state machine position.
func (s *Session) Phase() Phase { return s.state.Phase }

// PinCode returns the 4-digit PIN once key derivation has completed, or
// the empty string before then.
func (s *Session) PinCode() string { return s.state.PinCode }

// Events returns the channel StatusEvents are published to. Callers
// should drain it; it is buffered but not infinite.
func (s *Session) Events() <-chan StatusEvent { return s.events }

func (s *Session) publish(detail string) {
	ev := StatusEvent{SessionID: s.id, Phase: s.state.Phase, PinCode: s.state.PinCode, Detail: detail}
	select {
	case s.events <- ev:
	default:
		logger.Warn("session: events channel full, dropping status event", logger.String("session_id", s.id))
	}
	s.hub.Publish(statusbus.Message{
		SessionID: s.id,
		Direction: statusbus.DirectionLibToFront,
		Phase:     s.state.Phase.String(),
		PinCode:   s.state.PinCode,
		Detail:    detail,
	})
}

// Start sends the plaintext ConnectionRequest and Ukey2ClientInit,
// transitioning Initial -> SentClientInit.
func (s *Session) Start() error {
	deviceInfo := (&proto.RemoteDeviceInfo{Name: s.local.Name, DeviceType: int32(s.local.DeviceType)}).Marshal()
	request := &proto.OfflineFrame{
		Version: 1,
		V1: &proto.V1Frame{
			Type: proto.V1FrameConnectionRequest,
			ConnectionRequest: &proto.ConnectionRequestFrame{
				EndpointID:   s.local.ID[:],
				EndpointName: s.local.Name,
				EndpointInfo: deviceInfo,
				Mediums:      []proto.Medium{proto.MediumWifiLan},
			},
		},
	}
	if err := wire.WriteFrame(s.conn, request.Marshal()); err != nil {
		return s.terminate(fmt.Errorf("send connection request: %w", err))
	}

	stageStart := time.Now()
	clientInit, err := s.hs.BuildClientInit()
	if err != nil {
		return s.terminate(err)
	}
	metrics.HandshakeStageDuration.WithLabelValues("client_init").Observe(time.Since(stageStart).Seconds())

	if err := wire.WriteFrame(s.conn, clientInit); err != nil {
		return s.terminate(fmt.Errorf("send client init: %w", err))
	}

	metrics.HandshakesInitiated.Inc()
	s.state.Phase = PhaseSentClientInit
	s.publish("sent connection request and client init")
	return nil
}

type frameResult struct {
	body []byte
	err  error
}

func (s *Session) readLoop(out chan<- frameResult) {
	defer close(out)
	for {
		body, err := wire.ReadFrame(s.r)
		out <- frameResult{body: body, err: err}
		if err != nil {
			return
		}
	}
}

// Run drives the cooperative event loop: each tick races a socket-frame
// read against a control-bus receive, handling whichever completes
// first. It returns when the session transitions to Terminated, the
// stream closes, or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer s.unsub()
	defer close(s.events)

	frames := make(chan frameResult)
	go s.readLoop(frames)

	for s.state.Phase != PhaseTerminated {
		select {
		case <-ctx.Done():
			sageErr := logger.NewSageError(logger.ErrCodeTimeout, "session run loop cancelled", ctx.Err()).
				WithDetails("session_id", s.id).
				WithDetails("phase", s.state.Phase.String())
			logger.Warn("session run loop cancelled", logger.Error(sageErr))
			return ctx.Err()

		case fr, ok := <-frames:
			if !ok {
				return nil
			}
			if fr.err != nil {
				return s.terminate(fr.err)
			}
			if err := s.handleFrame(fr.body); err != nil {
				return err
			}

		case msg := <-s.control:
			if msg.Direction != statusbus.DirectionFrontToLib || msg.SessionID != s.id {
				continue
			}
			if err := s.handleControl(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) handleControl(msg statusbus.Message) error {
	switch msg.Action {
	case statusbus.ActionCancelTransfer:
		s.sendDisconnection()
		wasEncrypted := s.state.Phase == PhaseEncrypted
		s.state.Phase = PhaseTerminated
		if wasEncrypted {
			metrics.SessionsActive.Dec()
		}
		metrics.SessionsTerminated.WithLabelValues("cancelled").Inc()
		s.publish("cancelled by control channel")
		return nil
	default:
		logger.Warn("session: ignoring unrecognized control action", logger.String("session_id", s.id))
		return nil
	}
}

func (s *Session) handleFrame(body []byte) error {
	switch s.state.Phase {
	case PhaseSentClientInit:
		return s.handleServerInit(body)
	case PhaseSentClientFinish:
		return s.terminate(fmt.Errorf("%w: phase %s", ErrUnexpectedFrame, s.state.Phase))
	case PhaseEncrypted:
		return s.handleEncryptedFrame(body)
	default:
		return s.terminate(fmt.Errorf("%w: phase %s", ErrUnexpectedFrame, s.state.Phase))
	}
}

func (s *Session) handleServerInit(body []byte) error {
	stageStart := time.Now()
	if err := s.hs.ValidateServerInit(body); err != nil {
		var perr *ukey2.ProtocolError
		if errors.As(err, &perr) {
			s.sendAlertBestEffort(perr.Alert)
		}
		return s.terminate(err)
	}
	metrics.HandshakeStageDuration.WithLabelValues("server_init").Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	keys, err := s.hs.DeriveKeys()
	if err != nil {
		// KeyDerivation failures send no alert: keys aren't established.
		return s.terminate(err)
	}
	pin, err := ukey2.Pin(keys)
	if err != nil {
		return s.terminate(err)
	}
	metrics.HandshakeStageDuration.WithLabelValues("key_derivation").Observe(time.Since(stageStart).Seconds())

	s.env = envelope.New(keys)
	s.state.PinCode = pin
	s.state.EncryptionReady = true
	s.state.Phase = PhaseSentClientFinish

	stageStart = time.Now()
	if err := wire.WriteFrame(s.conn, s.hs.ClientFinishBytes()); err != nil {
		return s.terminate(fmt.Errorf("send client finish: %w", err))
	}
	metrics.HandshakeStageDuration.WithLabelValues("client_finish").Observe(time.Since(stageStart).Seconds())

	response := &proto.OfflineFrame{
		Version: 1,
		V1: &proto.V1Frame{
			Type: proto.V1FrameConnectionResponse,
			ConnectionResponse: &proto.ConnectionResponseFrame{
				Response: proto.ConnectionResponseAccept,
				OsInfo:   &proto.OsInfo{Type: osInfoOrDefault(s.local.OSInfo)},
			},
		},
	}
	if err := s.sendEncrypted(response); err != nil {
		return s.terminate(fmt.Errorf("send connection response: %w", err))
	}

	s.state.Phase = PhaseEncrypted
	metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	s.publish(fmt.Sprintf("handshake complete, pin=%s", pin))
	return nil
}

func osInfoOrDefault(t proto.OSType) proto.OSType {
	if t == proto.OSUnknown {
		return proto.OSLinux
	}
	return t
}

func (s *Session) handleEncryptedFrame(body []byte) error {
	offline, err := s.env.DecryptFrame(body)
	if err != nil {
		switch {
		case errors.Is(err, envelope.ErrSignatureMismatch):
			metrics.FrameErrors.WithLabelValues("signature_mismatch").Inc()
		case errors.Is(err, envelope.ErrSequenceMismatch):
			metrics.FrameErrors.WithLabelValues("sequence_mismatch").Inc()
		default:
			metrics.FrameErrors.WithLabelValues("malformed").Inc()
		}
		return s.terminate(err)
	}
	if offline.V1 == nil {
		return s.terminate(fmt.Errorf("%w: missing v1 frame", ErrUnexpectedFrame))
	}

	switch offline.V1.Type {
	case proto.V1FrameKeepAlive:
		s.publish("received keepalive")
	case proto.V1FrameDisconnection:
		s.state.Phase = PhaseTerminated
		metrics.SessionsActive.Dec()
		metrics.SessionsTerminated.WithLabelValues("peer_disconnect").Inc()
		s.publish("peer disconnected")
	case proto.V1FramePayloadTransfer:
		s.publish("received payload chunk")
	default:
		logger.Warn("session: unhandled v1 frame type in Encrypted phase", logger.String("session_id", s.id))
	}
	return nil
}

// SendKeepalive wraps a KeepAliveFrame and sends it encrypted if
// encryption is established, plain otherwise.
func (s *Session) SendKeepalive(ack bool) error {
	if s.state.Phase == PhaseTerminated {
		return ErrTerminated
	}
	frame := &proto.OfflineFrame{
		Version: 1,
		V1:      &proto.V1Frame{Type: proto.V1FrameKeepAlive, KeepAlive: &proto.KeepAliveFrame{Ack: ack}},
	}
	return s.sendFrameGated(frame)
}

// SendPayload chunks body into the original's two-frame transfer: one
// Data chunk at offset 0 carrying the full body, then a zero-byte
// terminator chunk at offset=len(body) with flags=1. Only valid once
// Encrypted.
func (s *Session) SendPayload(body []byte) error {
	if s.state.Phase == PhaseTerminated {
		return ErrTerminated
	}
	if s.state.Phase != PhaseEncrypted {
		return fmt.Errorf("session: SendPayload requires Encrypted phase, got %s", s.state.Phase)
	}

	id, err := randomPayloadID()
	if err != nil {
		return err
	}
	header := &proto.PayloadHeader{ID: id, Type: proto.PayloadTypeBytes, TotalSize: int64(len(body)), IsSensitive: false}

	dataFrame := &proto.OfflineFrame{
		Version: 1,
		V1: &proto.V1Frame{
			Type: proto.V1FramePayloadTransfer,
			PayloadTransfer: &proto.PayloadTransferFrame{
				PacketType:    proto.PayloadTransferPacketData,
				PayloadHeader: header,
				PayloadChunk:  &proto.PayloadChunk{Offset: 0, Flags: 0, Body: body},
			},
		},
	}
	if err := s.sendEncrypted(dataFrame); err != nil {
		return fmt.Errorf("session: send payload data chunk: %w", err)
	}

	terminator := &proto.OfflineFrame{
		Version: 1,
		V1: &proto.V1Frame{
			Type: proto.V1FramePayloadTransfer,
			PayloadTransfer: &proto.PayloadTransferFrame{
				PacketType:    proto.PayloadTransferPacketData,
				PayloadHeader: header,
				PayloadChunk:  &proto.PayloadChunk{Offset: int64(len(body)), Flags: 1, Body: nil},
			},
		},
	}
	if err := s.sendEncrypted(terminator); err != nil {
		return fmt.Errorf("session: send payload terminator chunk: %w", err)
	}
	metrics.PayloadBytesSent.Add(float64(len(body)))
	return nil
}

func randomPayloadID() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("session: generate payload id: %w", err)
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

// sendDisconnection sends a Disconnection frame, encrypted if the
// session's keys are established, plain otherwise; failures are
// best-effort and do not mask the original error that triggered
// disconnection.
func (s *Session) sendDisconnection() {
	frame := &proto.OfflineFrame{
		Version: 1,
		V1:      &proto.V1Frame{Type: proto.V1FrameDisconnection, Disconnection: &proto.DisconnectionFrame{}},
	}
	if err := s.sendFrameGated(frame); err != nil {
		logger.Warn("session: best-effort disconnection send failed", logger.String("session_id", s.id), logger.Error(err))
	}
}

func (s *Session) sendFrameGated(frame *proto.OfflineFrame) error {
	if s.state.EncryptionReady {
		return s.sendEncrypted(frame)
	}
	return wire.WriteFrame(s.conn, frame.Marshal())
}

func (s *Session) sendEncrypted(frame *proto.OfflineFrame) error {
	wireBytes, err := s.env.EncryptFrame(frame)
	if err != nil {
		return err
	}
	return wire.WriteFrame(s.conn, wireBytes)
}

func (s *Session) sendAlertBestEffort(alert proto.Ukey2AlertType) {
	if err := wire.WriteFrame(s.conn, ukey2.BuildAlert(alert)); err != nil {
		logger.Warn("session: best-effort alert send failed", logger.String("session_id", s.id), logger.Error(err))
	}
}

func (s *Session) terminate(err error) error {
	wasEncrypted := s.state.Phase == PhaseEncrypted
	s.state.Phase = PhaseTerminated

	var perr *ukey2.ProtocolError
	var code string
	switch {
	case errors.Is(err, wire.ErrFrameTooLarge):
		metrics.FrameErrors.WithLabelValues("too_large").Inc()
		code = logger.ErrCodeNetworkError
	case errors.Is(err, wire.ErrTruncated):
		metrics.FrameErrors.WithLabelValues("truncated").Inc()
		code = logger.ErrCodeNetworkError
	case wasEncrypted:
		code = logger.ErrCodeNetworkError
	case errors.As(err, &perr):
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		metrics.HandshakesFailed.WithLabelValues(fmt.Sprintf("alert_%d", perr.Alert)).Inc()
		code = logger.ErrCodeProtocolError
	case errors.Is(err, ukey2.ErrKeyDerivation), errors.Is(err, cryptocore.ErrKeyDerivation):
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		metrics.HandshakesFailed.WithLabelValues("key_derivation").Inc()
		code = logger.ErrCodeCryptoError
	default:
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		metrics.HandshakesFailed.WithLabelValues("transport").Inc()
		code = logger.ErrCodeNetworkError
	}
	if wasEncrypted {
		metrics.SessionsActive.Dec()
		metrics.SessionsTerminated.WithLabelValues("transport_error").Inc()
	}

	sageErr := logger.NewSageError(code, "session terminated", err).
		WithDetails("session_id", s.id).
		WithDetails("peer", fmt.Sprintf("%x", s.peer)).
		WithDetails("phase", s.state.Phase.String())
	logger.Error("session terminated", logger.Error(sageErr))

	s.publish(err.Error())
	return err
}
