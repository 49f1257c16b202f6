package conf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RJ/birdbox/internal/logger"
)

func emptyEnv(string) string { return "" }

func TestLoadDefaults(t *testing.T) {
	c, err := Load(emptyEnv)
	require.NoError(t, err)
	require.Equal(t, RTSPTransportUDP, c.RTSPTransport)
	require.Equal(t, 20, c.AudioBufferFrames)
	require.Equal(t, 4, c.VideoBufferFrames)
	require.Equal(t, 50000, c.UDPPort)
	require.Equal(t, ":8080", c.SignalAddr)
	require.Equal(t, logger.Info, c.LogLevel)
}

func TestLoadOverlaysEnv(t *testing.T) {
	env := map[string]string{
		"BIRDBOX_RTSP_TRANSPORT":      "tcp",
		"BIRDBOX_AUDIO_BUFFER_FRAMES": "30",
		"BIRDBOX_UDP_PORT":            "12345",
		"BIRDBOX_ADVERTISED_IPS":      "10.0.0.5, 10.0.0.6",
		"BIRDBOX_LOG_LEVEL":           "debug",
	}
	c, err := Load(func(k string) string { return env[k] })
	require.NoError(t, err)

	require.Equal(t, RTSPTransportTCP, c.RTSPTransport)
	require.Equal(t, 30, c.AudioBufferFrames)
	require.Equal(t, 12345, c.UDPPort)
	require.Equal(t, []string{"10.0.0.5", "10.0.0.6"}, c.AdvertisedIPs)
	require.Equal(t, logger.Debug, c.LogLevel)
}

func TestLoadRejectsInvalidTransport(t *testing.T) {
	env := map[string]string{"BIRDBOX_RTSP_TRANSPORT": "carrier-pigeon"}
	_, err := Load(func(k string) string { return env[k] })
	require.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	env := map[string]string{"BIRDBOX_LOG_LEVEL": "shout"}
	_, err := Load(func(k string) string { return env[k] })
	require.Error(t, err)
}
