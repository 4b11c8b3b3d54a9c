package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Client plays one game against a server's /ws endpoint.
type Client struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

// Dial connects to a ws:// or wss:// URL ending in /ws.
func Dial(ctx context.Context, url string, readTimeout time.Duration) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &Client{conn: conn, readTimeout: readTimeout}, nil
}

// Move sends one board and waits for the server's answer. A response with
// Error set is returned as an error.
func (c *Client) Move(req MoveRequest) (MoveResponse, error) {
	req.Type = MessageMove
	if err := c.conn.WriteJSON(req); err != nil {
		return MoveResponse{}, fmt.Errorf("write move: %w", err)
	}
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	var resp MoveResponse
	if err := c.conn.ReadJSON(&resp); err != nil {
		return MoveResponse{}, fmt.Errorf("read move: %w", err)
	}
	if resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// End tells the server the game is over and waits for it to close.
func (c *Client) End() error {
	if err := c.conn.WriteJSON(MoveRequest{Type: MessageEnd}); err != nil {
		return fmt.Errorf("write end: %w", err)
	}
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("waiting for close: %w", err)
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
