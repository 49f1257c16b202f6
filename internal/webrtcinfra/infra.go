package webrtcinfra

import (
	"fmt"
	"net"

	"github.com/pion/ice/v2"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/RJ/birdbox/internal/logger"
)

// Config configures the shared WebRTC infrastructure (§4.7, §6).
type Config struct {
	BindAddress   string
	UDPPort       int
	AdvertisedIPs []string
}

// Infra holds the shared UDP socket and the pion API built on top of it.
// One Infra instance is reused across every session (§4.7, §9: "any
// other state that appears global ... is created once at startup and
// passed by reference").
type Infra struct {
	API        *webrtc.API
	UDPMux     ice.UDPMux
	listener   net.PacketConn
	BoundIP    string
	NAT1To1IPs []string
}

// New builds the shared UDP socket, ICE policy, and media engine. On a
// bind failure to a specific configured IP it falls back to 0.0.0.0 and
// still advertises the configured IP via NAT-1:1 (§7 error taxonomy #5,
// §8 boundary behaviors).
func New(cfg Config, log logger.Writer) (*Infra, error) {
	bindIP := cfg.BindAddress
	advertised := cfg.AdvertisedIPs

	if len(advertised) == 0 {
		detected, err := detectOutboundIP()
		if err == nil {
			bindIP = detected
			advertised = []string{detected}
		}
	}

	addr := &net.UDPAddr{IP: net.ParseIP(bindIP), Port: cfg.UDPPort}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		log.Log(logger.Warn, "failed to bind UDP to %s: %v, falling back to 0.0.0.0 with NAT-1:1", bindIP, err)
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: cfg.UDPPort})
		if err != nil {
			return nil, fmt.Errorf("failed to bind UDP even to 0.0.0.0: %w", err)
		}
		bindIP = "0.0.0.0"
		if len(advertised) == 0 {
			advertised = []string{cfg.BindAddress}
		}
	}

	udpMux := webrtc.NewICEUDPMux(nil, conn)

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetICEUDPMux(udpMux)

	// §4.7 ICE policy: NAT-1:1 whenever advertised IPs are configured,
	// one host candidate per advertised IP, mDNS disabled so the
	// browser never prefers an unreachable .local name.
	if len(advertised) != 0 {
		settingEngine.SetNAT1To1IPs(advertised, webrtc.ICECandidateTypeHost)
		settingEngine.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(videoCodec, webrtc.RTPCodecTypeVideo); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("register video codec: %w", err)
	}
	if err := mediaEngine.RegisterCodec(audioCodec, webrtc.RTPCodecTypeAudio); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("register audio codec: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	return &Infra{
		API:        api,
		UDPMux:     udpMux,
		listener:   conn,
		BoundIP:    bindIP,
		NAT1To1IPs: advertised,
	}, nil
}

// Close releases the shared UDP socket.
func (i *Infra) Close() error {
	return i.listener.Close()
}

// detectOutboundIP opens an ephemeral UDP socket toward a publicly
// routed address without sending any traffic, and reads back the
// OS-chosen local source address (§4.7 auto-detection fallback). This
// naturally excludes loopback and VPN-only interfaces.
func detectOutboundIP() (string, error) {
	conn, err := net.Dial("udp4", "203.0.113.1:443")
	if err != nil {
		return "", err
	}
	defer conn.Close() //nolint:errcheck

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type")
	}
	return local.IP.String(), nil
}
