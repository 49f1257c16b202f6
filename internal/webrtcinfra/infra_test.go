package webrtcinfra

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RJ/birdbox/internal/logger"
)

type discardWriter struct{}

func (discardWriter) Log(level logger.Level, format string, args ...interface{}) {}

func TestNewBindsToLoopbackAndAdvertisesConfiguredIPs(t *testing.T) {
	infra, err := New(Config{
		BindAddress:   "127.0.0.1",
		UDPPort:       0, // let the OS choose a free port
		AdvertisedIPs: []string{"203.0.113.10"},
	}, discardWriter{})
	require.NoError(t, err)
	defer infra.Close() //nolint:errcheck

	require.Equal(t, "127.0.0.1", infra.BoundIP)
	require.Equal(t, []string{"203.0.113.10"}, infra.NAT1To1IPs)
	require.NotNil(t, infra.API)
	require.NotNil(t, infra.UDPMux)
}

func TestNewFallsBackToAutoDetectedIPWhenNoneConfigured(t *testing.T) {
	infra, err := New(Config{
		BindAddress: "127.0.0.1",
		UDPPort:     0,
	}, discardWriter{})
	require.NoError(t, err)
	defer infra.Close() //nolint:errcheck

	require.NotEmpty(t, infra.BoundIP)
}
