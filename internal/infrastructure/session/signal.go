package session

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// signalMessage is the JSON envelope exchanged with the media server's
// signaling endpoint.
type signalMessage struct {
	Method    string            `json:"method"`
	Token     string            `json:"token,omitempty"`
	SDP       string            `json:"sdp,omitempty"`
	Candidate *candidatePayload `json:"candidate,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	DeviceID  string            `json:"deviceId,omitempty"`
	Enabled   *bool             `json:"enabled,omitempty"`
	Metadata  string            `json:"metadata,omitempty"`
	Identity  string            `json:"identity,omitempty"`
	Name      string            `json:"name,omitempty"`
	TrackSID  string            `json:"trackSid,omitempty"`
	Muted     bool              `json:"muted,omitempty"`
	Settings  *sharePayload     `json:"settings,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type candidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

type sharePayload struct {
	Resolution  string `json:"resolution"`
	FPS         int    `json:"fps"`
	EnableAudio bool   `json:"enableAudio"`
}

const (
	methodAuth              = "AUTH"
	methodAuthOK            = "AUTH_OK"
	methodOffer             = "OFFER"
	methodAnswer            = "ANSWER"
	methodICE               = "ICE"
	methodPublication       = "PUBLICATION"
	methodSwitchDevice      = "SWITCH_DEVICE"
	methodMetadata          = "METADATA"
	methodLeave             = "LEAVE"
	methodParticipantJoined = "PARTICIPANT_JOINED"
	methodParticipantLeft   = "PARTICIPANT_LEFT"
	methodTrackPublished    = "TRACK_PUBLISHED"
	methodTrackUnpublished  = "TRACK_UNPUBLISHED"
	methodError             = "ERROR"
)

// signalHandler receives decoded server messages from the read loop.
type signalHandler interface {
	onAuthResult(err error)
	onAnswer(sdp string)
	onRemoteCandidate(c candidatePayload)
	onServerEvent(msg signalMessage)
	onClosed(err error)
}

// signalClient manages the WebSocket connection to the signaling endpoint.
// Writes are serialized; reads run on a dedicated goroutine.
type signalClient struct {
	conn    *websocket.Conn
	handler signalHandler
	logger  *zap.Logger

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

func dialSignal(serverURL string, handler signalHandler, logger *zap.Logger) (*signalClient, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse media server url: %w", err)
	}
	u.Path = "/rtc"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &signalClient{
		conn:    conn,
		handler: handler,
		logger:  logger,
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *signalClient) send(msg signalMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return fmt.Errorf("signaling connection closed")
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal signal message: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("signal write: %w", err)
	}
	return nil
}

func (c *signalClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (c *signalClient) readLoop() {
	defer c.close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				c.handler.onClosed(nil)
			default:
				c.handler.onClosed(err)
			}
			return
		}

		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("bad signal message", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *signalClient) dispatch(msg signalMessage) {
	switch msg.Method {
	case methodAuthOK:
		c.handler.onAuthResult(nil)
	case methodError:
		c.handler.onAuthResult(fmt.Errorf("signaling error: %s", msg.Error))
	case methodAnswer:
		c.handler.onAnswer(msg.SDP)
	case methodICE:
		if msg.Candidate != nil {
			c.handler.onRemoteCandidate(*msg.Candidate)
		}
	case methodParticipantJoined, methodParticipantLeft, methodTrackPublished, methodTrackUnpublished:
		c.handler.onServerEvent(msg)
	default:
		c.logger.Debug("unhandled signal method", zap.String("method", msg.Method))
	}
}
