// Package core assembles every gateway component into one running
// instance: configuration, logging, the doorbell client, the shared
// WebRTC infrastructure, both fan-out engines, the push-to-talk
// arbiter, and the signaling HTTP server.
package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/RJ/birdbox/internal/conf"
	"github.com/RJ/birdbox/internal/doorbell"
	"github.com/RJ/birdbox/internal/fanout"
	"github.com/RJ/birdbox/internal/logger"
	"github.com/RJ/birdbox/internal/ptt"
	"github.com/RJ/birdbox/internal/signaling"
	"github.com/RJ/birdbox/internal/unit"
	"github.com/RJ/birdbox/internal/videosource"
	"github.com/RJ/birdbox/internal/webrtcinfra"
)

var version = "v0.0.0"

// Core is one running instance of the gateway.
type Core struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	conf   *conf.Conf
	logger *logger.Logger

	infra       *webrtcinfra.Infra
	audioEngine *fanout.Engine[*unit.OpusFrame]
	videoEngine *fanout.Engine[*unit.H264AccessUnit]
	arbiter     *ptt.Arbiter
	httpServer  *http.Server

	done chan struct{}
}

// New loads configuration from the environment, brings up every
// component, and starts serving. It returns once startup either
// succeeds or fails; call Wait to block until shutdown.
func New(getenv func(string) string) (*Core, error) {
	c, err := conf.Load(getenv)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(c.LogLevel, c.LogDestinations, c.LogFile)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Core{
		ctx:       ctx,
		ctxCancel: cancel,
		conf:      c,
		logger:    log,
		done:      make(chan struct{}),
	}

	if err := p.createResources(); err != nil {
		log.Close()
		cancel()
		return nil, err
	}

	go p.run()

	return p, nil
}

func (p *Core) createResources() error {
	p.Log(logger.Info, "birdbox %s", version)

	infra, err := webrtcinfra.New(webrtcinfra.Config{
		BindAddress:   p.conf.BindAddress,
		UDPPort:       p.conf.UDPPort,
		AdvertisedIPs: p.conf.AdvertisedIPs,
	}, p.logger.Sub("webrtc"))
	if err != nil {
		return fmt.Errorf("webrtc infra: %w", err)
	}
	p.infra = infra

	doorbellClient := doorbell.NewClient(p.conf.DoorbellBaseURL, p.conf.DoorbellUser, p.conf.DoorbellPass)

	p.audioEngine = fanout.NewAudio(p.logger.Sub("audio"), doorbellClient, p.conf.AudioBufferFrames, conf.AudioGracePeriod)

	transport := videosource.TransportUDP
	if p.conf.RTSPTransport == conf.RTSPTransportTCP {
		transport = videosource.TransportTCP
	}
	p.videoEngine = fanout.NewVideo(p.logger.Sub("video"), p.conf.RTSPURL, transport, p.conf.VideoBufferFrames, conf.VideoGracePeriod)

	p.arbiter = ptt.NewArbiter()

	sigServer := signaling.NewServer(p.logger.Sub("signaling"), p.infra, p.audioEngine, p.videoEngine, p.arbiter, doorbellClient)

	mux := http.NewServeMux()
	mux.Handle("/ws", sigServer)
	p.httpServer = &http.Server{
		Addr:    p.conf.SignalAddr,
		Handler: mux,
	}

	go func() {
		if err := p.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.Log(logger.Error, "signaling server: %v", err)
		}
	}()

	p.Log(logger.Info, "signaling listening on %s, WebRTC UDP bound to %s:%d", p.conf.SignalAddr, p.infra.BoundIP, p.conf.UDPPort)

	return nil
}

// Log implements logger.Writer so Core itself can be passed where an
// unqualified writer is expected.
func (p *Core) Log(level logger.Level, format string, args ...interface{}) {
	p.logger.Log(level, format, args...)
}

// Close requests shutdown and waits for it to complete.
func (p *Core) Close() {
	p.ctxCancel()
	<-p.done
}

// Wait blocks until the Core has shut down, whether via Close or an
// OS interrupt signal.
func (p *Core) Wait() {
	<-p.done
}

func (p *Core) run() {
	defer close(p.done)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	select {
	case <-interrupt:
		p.Log(logger.Info, "shutting down gracefully")
	case <-p.ctx.Done():
	}

	if err := p.httpServer.Close(); err != nil {
		p.Log(logger.Warn, "closing signaling server: %v", err)
	}
	if err := p.infra.Close(); err != nil {
		p.Log(logger.Warn, "closing webrtc infra: %v", err)
	}
	p.logger.Close()
}
