// Package assemblyai streams PCM audio to AssemblyAI's Universal Streaming
// (v3) websocket API and reports the recognized turns as session events.
package assemblyai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"maxiwhisper/session"
)

const (
	DefaultHost        = "streaming.assemblyai.com"
	defaultDialTimeout = 10 * time.Second
	chunkMs            = 50
)

var ErrClosed = errors.New("assemblyai: stream closed")

// Client implements session.Backend.
type Client struct {
	APIKey string
	// Host is a bare host name or a base URL. A bare host is dialed with
	// wss://.
	Host        string
	DialTimeout time.Duration
}

func New(apiKey, host string) *Client {
	return &Client{APIKey: apiKey, Host: host}
}

// URL builds the websocket endpoint for the given stream parameters.
func (c *Client) URL(p session.Params) string {
	base := c.Host
	if base == "" {
		base = DefaultHost
	}
	if !strings.Contains(base, "://") {
		base = "wss://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{Scheme: "wss", Host: DefaultHost}
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v3/ws"

	q := url.Values{}
	q.Set("sample_rate", strconv.Itoa(p.SampleRate))
	q.Set("encoding", "pcm_s16le")
	if p.FormatTurns {
		q.Set("format_turns", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Open dials the service and starts streaming audio until it returns
// io.EOF, at which point the session is asked to terminate.
func (c *Client) Open(ctx context.Context, p session.Params, audio io.Reader) (session.Stream, error) {
	if p.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", p.SampleRate)
	}

	headers := http.Header{}
	headers.Set("Authorization", c.APIKey)

	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancelDial := context.WithTimeout(ctx, timeout)
	defer cancelDial()

	conn, resp, err := websocket.Dial(dialCtx, c.URL(p), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	chunk := p.SampleRate * 2 * chunkMs / 1000
	return newStream(ctx, conn, audio, chunk, p.FormatTurns), nil
}
