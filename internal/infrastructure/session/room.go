package session

import (
	"context"
	"fmt"
	"sync"

	"harmony/internal/core/domain"
	"harmony/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config carries the transport settings shared by all sessions.
type Config struct {
	ICEServers []webrtc.ICEServer
}

// Factory builds one Room per join attempt.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) NewSession() ports.RoomSession {
	return newRoom(f.cfg, f.logger)
}

// Room is the reference RoomSession: WebSocket signaling plus a pion peer
// connection. Publication toggles, device switches and metadata updates are
// control messages to the media server, which owns track routing.
type Room struct {
	cfg    Config
	logger *zap.Logger

	mu           sync.Mutex
	signal       *signalClient
	pc           *webrtc.PeerConnection
	connected    bool
	micEnabled   bool
	camEnabled   bool
	shareEnabled bool
	participants map[domain.UserID]*domain.Participant
	handlers     []func(ports.RoomEvent)

	// Remote candidates arriving before the answer is applied are buffered.
	remoteReady       bool
	pendingCandidates []candidatePayload

	authResult chan error
	answers    chan string
	connState  chan webrtc.PeerConnectionState
}

func newRoom(cfg Config, logger *zap.Logger) *Room {
	return &Room{
		cfg:          cfg,
		logger:       logger,
		participants: make(map[domain.UserID]*domain.Participant),
		authResult:   make(chan error, 1),
		answers:      make(chan string, 1),
		connState:    make(chan webrtc.PeerConnectionState, 8),
	}
}

// Connect dials the signaling endpoint, authenticates with the access token
// and negotiates the peer connection. The microphone publication starts
// enabled, matching the media server's default.
func (r *Room) Connect(ctx context.Context, serverURL, token string) error {
	sig, err := dialSignal(serverURL, r, r.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSessionConnect, err)
	}

	fail := func(err error) error {
		sig.close()
		r.mu.Lock()
		if r.pc != nil {
			r.pc.Close()
			r.pc = nil
		}
		r.signal = nil
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.signal = sig
	r.mu.Unlock()

	if err := sig.send(signalMessage{Method: methodAuth, Token: token}); err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
	}
	select {
	case err := <-r.authResult:
		if err != nil {
			return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
		}
	case <-ctx.Done():
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, ctx.Err()))
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: r.cfg.ICEServers})
	if err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
	}
	r.mu.Lock()
	r.pc = pc
	r.mu.Unlock()

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		payload := candidatePayload{Candidate: init.Candidate}
		if init.SDPMid != nil {
			payload.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			payload.SDPMLineIndex = *init.SDPMLineIndex
		}
		if err := sig.send(signalMessage{Method: methodICE, Candidate: &payload}); err != nil {
			r.logger.Warn("ice candidate send failed", zap.Error(err))
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		select {
		case r.connState <- s:
		default:
		}
	})

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv}); err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv}); err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
	}
	if err := sig.send(signalMessage{Method: methodOffer, SDP: offer.SDP}); err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
	}

	select {
	case sdp := <-r.answers:
		if err := pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  sdp,
		}); err != nil {
			return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, err))
		}
		r.flushCandidates(pc)
	case <-ctx.Done():
		return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, ctx.Err()))
	}

	for {
		select {
		case s := <-r.connState:
			switch s {
			case webrtc.PeerConnectionStateConnected:
				r.mu.Lock()
				r.connected = true
				r.micEnabled = true
				r.mu.Unlock()
				return nil
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				return fail(fmt.Errorf("%w: peer connection %s", domain.ErrSessionConnect, s))
			}
		case <-ctx.Done():
			return fail(fmt.Errorf("%w: %v", domain.ErrSessionConnect, ctx.Err()))
		}
	}
}

// Disconnect tears the session down. Safe to call on a session that never
// connected or is already gone.
func (r *Room) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	sig := r.signal
	pc := r.pc
	r.signal = nil
	r.pc = nil
	r.connected = false
	r.mu.Unlock()

	if sig != nil {
		if err := sig.send(signalMessage{Method: methodLeave}); err != nil {
			r.logger.Debug("leave message not delivered", zap.Error(err))
		}
		sig.close()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			return fmt.Errorf("close peer connection: %w", err)
		}
	}
	return nil
}

func (r *Room) IsMicrophoneEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.micEnabled
}

func (r *Room) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	if err := r.sendPublication("audio", enabled, nil); err != nil {
		return err
	}
	r.mu.Lock()
	r.micEnabled = enabled
	r.mu.Unlock()
	return nil
}

func (r *Room) SetCameraEnabled(ctx context.Context, enabled bool) error {
	if err := r.sendPublication("video", enabled, nil); err != nil {
		return err
	}
	r.mu.Lock()
	r.camEnabled = enabled
	r.mu.Unlock()
	return nil
}

func (r *Room) SetScreenShareEnabled(ctx context.Context, enabled bool, settings domain.ScreenShareSettings) error {
	var payload *sharePayload
	if enabled {
		payload = &sharePayload{
			Resolution:  settings.Resolution,
			FPS:         settings.FPS,
			EnableAudio: settings.EnableAudio,
		}
	}
	if err := r.sendPublication("screen", enabled, payload); err != nil {
		return err
	}
	r.mu.Lock()
	r.shareEnabled = enabled
	r.mu.Unlock()
	return nil
}

func (r *Room) SwitchActiveDevice(ctx context.Context, kind domain.DeviceKind, deviceID string) error {
	sig := r.currentSignal()
	if sig == nil {
		return domain.ErrNotConnected
	}
	return sig.send(signalMessage{Method: methodSwitchDevice, Kind: string(kind), DeviceID: deviceID})
}

func (r *Room) SetMetadata(ctx context.Context, metadata string) error {
	sig := r.currentSignal()
	if sig == nil {
		return domain.ErrNotConnected
	}
	return sig.send(signalMessage{Method: methodMetadata, Metadata: metadata})
}

func (r *Room) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

func (r *Room) OnEvent(handler func(ports.RoomEvent)) {
	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	r.mu.Unlock()
}

func (r *Room) sendPublication(kind string, enabled bool, settings *sharePayload) error {
	sig := r.currentSignal()
	if sig == nil {
		return domain.ErrNotConnected
	}
	return sig.send(signalMessage{Method: methodPublication, Kind: kind, Enabled: &enabled, Settings: settings})
}

func (r *Room) currentSignal() *signalClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signal
}

func (r *Room) flushCandidates(pc *webrtc.PeerConnection) {
	r.mu.Lock()
	pending := r.pendingCandidates
	r.pendingCandidates = nil
	r.remoteReady = true
	r.mu.Unlock()

	for _, c := range pending {
		r.addCandidate(pc, c)
	}
}

func (r *Room) addCandidate(pc *webrtc.PeerConnection, c candidatePayload) {
	mid := c.SDPMid
	index := c.SDPMLineIndex
	err := pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	})
	if err != nil {
		r.logger.Warn("remote ice candidate rejected", zap.Error(err))
	}
}

// signalHandler implementation; all of these run on the read loop goroutine.

func (r *Room) onAuthResult(err error) {
	select {
	case r.authResult <- err:
	default:
	}
}

func (r *Room) onAnswer(sdp string) {
	select {
	case r.answers <- sdp:
	default:
	}
}

func (r *Room) onRemoteCandidate(c candidatePayload) {
	r.mu.Lock()
	if !r.remoteReady {
		r.pendingCandidates = append(r.pendingCandidates, c)
		r.mu.Unlock()
		return
	}
	pc := r.pc
	r.mu.Unlock()

	if pc != nil {
		r.addCandidate(pc, c)
	}
}

func (r *Room) onServerEvent(msg signalMessage) {
	identity := domain.UserID(msg.Identity)

	r.mu.Lock()
	switch msg.Method {
	case methodParticipantJoined:
		r.participants[identity] = &domain.Participant{Identity: identity, Name: msg.Name}
	case methodParticipantLeft:
		delete(r.participants, identity)
	case methodTrackPublished:
		if p, ok := r.participants[identity]; ok {
			p.Tracks = append(p.Tracks, domain.TrackInfo{
				SID:   msg.TrackSID,
				Kind:  domain.TrackKind(msg.Kind),
				Muted: msg.Muted,
			})
		}
	case methodTrackUnpublished:
		if p, ok := r.participants[identity]; ok {
			tracks := p.Tracks[:0]
			for _, t := range p.Tracks {
				if t.SID != msg.TrackSID {
					tracks = append(tracks, t)
				}
			}
			p.Tracks = tracks
		}
	}
	handlers := make([]func(ports.RoomEvent), len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	event := ports.RoomEvent{
		Type:        eventType(msg.Method),
		Participant: identity,
		Track: domain.TrackInfo{
			SID:   msg.TrackSID,
			Kind:  domain.TrackKind(msg.Kind),
			Muted: msg.Muted,
		},
	}
	// Handlers are fire-and-forget; they must never block the read loop.
	for _, h := range handlers {
		go h(event)
	}
}

func (r *Room) onClosed(err error) {
	if err != nil {
		r.logger.Warn("signaling connection lost", zap.Error(err))
	}
}

func eventType(method string) ports.RoomEventType {
	switch method {
	case methodParticipantJoined:
		return ports.EventParticipantConnected
	case methodParticipantLeft:
		return ports.EventParticipantDisconnected
	case methodTrackPublished:
		return ports.EventTrackPublished
	case methodTrackUnpublished:
		return ports.EventTrackUnpublished
	}
	return ""
}
