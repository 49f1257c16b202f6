// Package conf loads gateway configuration from the environment.
package conf

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RJ/birdbox/internal/logger"
)

// Conf holds every tunable parameter of the gateway (§6 of the design spec).
type Conf struct {
	// doorbell endpoints
	DoorbellBaseURL string
	DoorbellUser    string
	DoorbellPass    string
	RTSPURL         string
	RTSPTransport   RTSPTransport

	// fan-out buffers
	AudioBufferFrames int
	VideoBufferFrames int

	// WebRTC infra
	BindAddress   string
	UDPPort       int
	AdvertisedIPs []string
	SignalAddr    string

	// logging
	LogLevel        logger.Level
	LogDestinations []logger.Destination
	LogFile         string
}

// RTSPTransport selects the RTSP lower transport.
type RTSPTransport int

// Supported transports.
const (
	RTSPTransportUDP RTSPTransport = iota
	RTSPTransportTCP
)

// Default grace periods (compile-time constants per §6).
const (
	AudioGracePeriod = 3 * time.Second
	VideoGracePeriod = 5 * time.Second
)

// Default returns a Conf populated with every §6 default.
func Default() *Conf {
	return &Conf{
		RTSPTransport:     RTSPTransportUDP,
		AudioBufferFrames: 20,
		VideoBufferFrames: 4,
		BindAddress:       "0.0.0.0",
		UDPPort:           50000,
		SignalAddr:        ":8080",
		LogLevel:          logger.Info,
		LogDestinations:   []logger.Destination{logger.DestinationStdout},
	}
}

// Load overlays environment variables, read through getenv, onto the defaults.
// getenv is injected (rather than calling os.Getenv directly) so tests can
// supply a fixed environment.
func Load(getenv func(string) string) (*Conf, error) {
	c := Default()

	if v := getenv("BIRDBOX_DOORBELL_BASE_URL"); v != "" {
		c.DoorbellBaseURL = v
	}
	if v := getenv("BIRDBOX_DOORBELL_USER"); v != "" {
		c.DoorbellUser = v
	}
	if v := getenv("BIRDBOX_DOORBELL_PASS"); v != "" {
		c.DoorbellPass = v
	}
	if v := getenv("BIRDBOX_RTSP_URL"); v != "" {
		c.RTSPURL = v
	}
	if v := getenv("BIRDBOX_RTSP_TRANSPORT"); v != "" {
		switch strings.ToLower(v) {
		case "tcp":
			c.RTSPTransport = RTSPTransportTCP
		case "udp":
			c.RTSPTransport = RTSPTransportUDP
		default:
			return nil, fmt.Errorf("invalid BIRDBOX_RTSP_TRANSPORT: %q", v)
		}
	}

	if v := getenv("BIRDBOX_AUDIO_BUFFER_FRAMES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BIRDBOX_AUDIO_BUFFER_FRAMES: %w", err)
		}
		c.AudioBufferFrames = n
	}
	if v := getenv("BIRDBOX_VIDEO_BUFFER_FRAMES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BIRDBOX_VIDEO_BUFFER_FRAMES: %w", err)
		}
		c.VideoBufferFrames = n
	}

	if v := getenv("BIRDBOX_BIND_ADDRESS"); v != "" {
		c.BindAddress = v
	}
	if v := getenv("BIRDBOX_UDP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BIRDBOX_UDP_PORT: %w", err)
		}
		c.UDPPort = n
	}
	if v := getenv("BIRDBOX_ADVERTISED_IPS"); v != "" {
		var ips []string
		for _, ip := range strings.Split(v, ",") {
			ip = strings.TrimSpace(ip)
			if ip != "" {
				ips = append(ips, ip)
			}
		}
		c.AdvertisedIPs = ips
	}
	if v := getenv("BIRDBOX_SIGNAL_ADDR"); v != "" {
		c.SignalAddr = v
	}

	if v := getenv("BIRDBOX_LOG_LEVEL"); v != "" {
		lvl, err := parseLevel(v)
		if err != nil {
			return nil, err
		}
		c.LogLevel = lvl
	}
	if v := getenv("BIRDBOX_LOG_FILE"); v != "" {
		c.LogFile = v
		c.LogDestinations = append(c.LogDestinations, logger.DestinationFile)
	}

	return c, nil
}

func parseLevel(v string) (logger.Level, error) {
	switch strings.ToLower(v) {
	case "debug":
		return logger.Debug, nil
	case "info":
		return logger.Info, nil
	case "warn":
		return logger.Warn, nil
	case "error":
		return logger.Error, nil
	default:
		return 0, fmt.Errorf("invalid log level: %q", v)
	}
}
