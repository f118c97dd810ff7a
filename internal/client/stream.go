package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
)

// streamMessage covers the server messages Follow cares about.
type streamMessage struct {
	Type    string          `json:"type"`
	Entries []console.Entry `json:"entries,omitempty"`
	Entry   *console.Entry  `json:"entry,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Follow streams the console log of a workspace: the backlog first, then
// every new entry, until ctx is done or the workspace closes.
func (c *Client) Follow(ctx context.Context, wid string, fn func(console.Entry)) error {
	u, err := c.streamURL(wid)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return &APIError{Status: resp.StatusCode, Message: "workspace not found"}
		}
		return fmt.Errorf("connect %s: %w", u, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	var last uint64
	emit := func(e console.Entry) {
		if e.Seq > last {
			last = e.Seq
			fn(e)
		}
	}
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream: %w", err)
		}
		switch msg.Type {
		case "backlog":
			for _, e := range msg.Entries {
				emit(e)
			}
		case "log":
			if msg.Entry != nil {
				emit(*msg.Entry)
			}
		case "error":
			c.logger.Warn("Stream error", zap.String("message", msg.Message))
		}
	}
}

func (c *Client) streamURL(wid string) (string, error) {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.New("server URL must be http or https")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/workspaces/" + url.PathEscape(wid) + "/stream"
	return u.String(), nil
}
