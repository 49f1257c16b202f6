// Package doorbell wraps the doorbell's HTTP endpoints consumed by the
// gateway (spec.md §6): the chunked mu-law audio stream and the
// push-to-talk upload stream. Both use HTTP Basic auth.
package doorbell

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Client talks to one doorbell's HTTP endpoints.
type Client struct {
	BaseURL  string
	Username string
	Password string

	httpClient *http.Client
}

// NewClient allocates a Client.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Username:   username,
		Password:   password,
		httpClient: &http.Client{},
	}
}

// OpenAudioReceive opens the doorbell's chunked mu-law/8kHz audio
// stream. The caller must close the returned body.
func (c *Client) OpenAudioReceive(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/bha-api/audio-receive.cgi", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio-receive: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("audio-receive: unexpected status %s", resp.Status)
	}

	return resp.Body, nil
}

// OpenAudioTransmit opens a persistent POST upload of mu-law/8kHz audio
// for push-to-talk. body is read until the caller closes the pipe end it
// was given (via io.Pipe, typically).
func (c *Client) OpenAudioTransmit(ctx context.Context, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/bha-api/audio-transmit.cgi", body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Content-Type", "audio/basic")
	req.Header.Set("Connection", "Keep-Alive")
	req.ContentLength = -1

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("audio-transmit: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio-transmit: unexpected status %s", resp.Status)
	}
	return nil
}
