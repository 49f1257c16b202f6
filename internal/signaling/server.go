package signaling

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/RJ/birdbox/internal/doorbell"
	"github.com/RJ/birdbox/internal/fanout"
	"github.com/RJ/birdbox/internal/logger"
	"github.com/RJ/birdbox/internal/ptt"
	"github.com/RJ/birdbox/internal/session"
	"github.com/RJ/birdbox/internal/unit"
	"github.com/RJ/birdbox/internal/webrtcinfra"
)

var (
	pingInterval = 30 * time.Second
	pingTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts one WebSocket connection per browser tab and drives a
// Session's signaling over it (§4.10).
type Server struct {
	log         logger.Writer
	infra       *webrtcinfra.Infra
	audioEngine *fanout.Engine[*unit.OpusFrame]
	videoEngine *fanout.Engine[*unit.H264AccessUnit]
	arbiter     *ptt.Arbiter
	doorbell    *doorbell.Client
}

// NewServer allocates a signaling Server over the gateway's shared
// infrastructure.
func NewServer(
	log logger.Writer,
	infra *webrtcinfra.Infra,
	audioEngine *fanout.Engine[*unit.OpusFrame],
	videoEngine *fanout.Engine[*unit.H264AccessUnit],
	arbiter *ptt.Arbiter,
	client *doorbell.Client,
) *Server {
	return &Server{
		log:         log,
		infra:       infra,
		audioEngine: audioEngine,
		videoEngine: videoEngine,
		arbiter:     arbiter,
		doorbell:    client,
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs one session's
// signaling for the lifetime of the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Log(logger.Warn, "signaling: upgrade failed: %v", err)
		return
	}

	c := newConn(s, wc)
	c.run()
}

// conn drives one WebSocket's signaling loop. All writes to wc are
// serialized through the write channel and the writeLoop goroutine,
// since gorilla/websocket allows at most one concurrent writer and
// ICE candidates, push-to-talk state, and pings each originate from a
// different goroutine.
type conn struct {
	srv *Server
	wc  *websocket.Conn

	sess   *session.Session
	pttSub chan ptt.State

	terminate chan struct{}
	write     chan []byte
	writeErr  chan error
}

func newConn(srv *Server, wc *websocket.Conn) *conn {
	return &conn{
		srv:       srv,
		wc:        wc,
		terminate: make(chan struct{}),
		write:     make(chan []byte),
		writeErr:  make(chan error),
	}
}

func (c *conn) run() {
	defer c.wc.Close() //nolint:errcheck
	defer close(c.terminate)

	sess, err := session.New(c.srv.log, c.srv.infra, c.srv.audioEngine, c.srv.videoEngine, c.srv.arbiter, c.srv.doorbell)
	if err != nil {
		c.srv.log.Log(logger.Error, "signaling: failed to create session: %v", err)
		return
	}
	c.sess = sess
	defer sess.Close() //nolint:errcheck

	c.pttSub = c.srv.arbiter.Subscribe()
	defer c.srv.arbiter.Unsubscribe(c.pttSub)
	go c.pumpPTTState()

	c.wc.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout)) //nolint:errcheck
	c.wc.SetPongHandler(func(string) error {
		c.wc.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout)) //nolint:errcheck
		return nil
	})

	go c.writeLoop()

	offer, err := c.readOffer()
	if err != nil {
		c.srv.log.Log(logger.Warn, "signaling: read offer: %v", err)
		return
	}

	answer, err := sess.Negotiate(*offer, c.sendCandidate, nil)
	if err != nil {
		c.srv.log.Log(logger.Warn, "signaling: negotiate: %v", err)
		return
	}
	if err := c.writeEnvelope(answerEnvelope(answer.SDP)); err != nil {
		return
	}

	for {
		var env Envelope
		if err := c.wc.ReadJSON(&env); err != nil {
			return
		}
		switch env.Type {
		case TypeICE:
			if env.Candidate != nil {
				if err := sess.AddICECandidate(*env.Candidate); err != nil {
					c.srv.log.Log(logger.Warn, "signaling: add ICE candidate: %v", err)
				}
			}

		case TypePTTRequest:
			if result, state := sess.RequestPTT(); result != ptt.Granted {
				c.srv.log.Log(logger.Info, "signaling: ptt_request denied, held by %s", state.Owner)
			}

		case TypePTTRelease:
			sess.ReleasePTT()

		default:
			c.srv.log.Log(logger.Debug, "signaling: ignoring unexpected message type %q", env.Type)
		}
	}
}

func (c *conn) readOffer() (*webrtc.SessionDescription, error) {
	var env Envelope
	if err := c.wc.ReadJSON(&env); err != nil {
		return nil, err
	}
	if env.Type != TypeOffer {
		return nil, fmt.Errorf("expected offer, got %q", env.Type)
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: env.SDP}, nil
}

func (c *conn) sendCandidate(cand webrtc.ICECandidateInit) {
	c.writeEnvelope(iceEnvelope(cand)) //nolint:errcheck
}

// writeLoop is the single goroutine allowed to call wc.WriteMessage,
// serializing application writes against the periodic ping.
func (c *conn) writeLoop() {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case enc := <-c.write:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			c.writeErr <- c.wc.WriteMessage(websocket.TextMessage, enc)

		case <-pingTicker.C:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			c.wc.WriteMessage(websocket.PingMessage, nil)       //nolint:errcheck

		case <-c.terminate:
			return
		}
	}
}

func (c *conn) writeEnvelope(env Envelope) error {
	enc, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case c.write <- enc:
		return <-c.writeErr
	case <-c.terminate:
		return fmt.Errorf("connection closed")
	}
}

// pumpPTTState forwards the shared arbiter's feed to this browser as
// free/held_by_me/held_by_other, translated relative to this session's
// own ID (§4.9, §4.10).
func (c *conn) pumpPTTState() {
	for state := range c.pttSub {
		var wire string
		switch {
		case !state.Held:
			wire = PTTFree
		case state.Owner == c.sess.ID():
			wire = PTTHeldByMe
		default:
			wire = PTTHeldByOther
		}
		if err := c.writeEnvelope(pttStateEnvelope(wire)); err != nil {
			return
		}
	}
}
