// Package transport connects a call client to the relay over WebSocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/protocol"
	"github.com/dkeye/Duo/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

var (
	ErrClosed     = errors.New("transport closed")
	ErrSendBuffer = errors.New("send buffer full")
)

// Dialer opens relay connections to URL.
type Dialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewDialer(serverURL string) *Dialer {
	return &Dialer{URL: serverURL, Dialer: websocket.DefaultDialer}
}

func (d *Dialer) Dial(ctx context.Context, events session.TransportEvents) (session.Transport, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c := &Client{
		conn:     conn,
		events:   events,
		outgoing: make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	log.Info().Str("module", "transport").Str("url", u.String()).Msg("connected to relay")
	return c, nil
}

// Client is one relay connection. Send is safe for concurrent use.
type Client struct {
	conn     *websocket.Conn
	events   session.TransportEvents
	outgoing chan []byte
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

func (c *Client) Send(m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.outgoing <- data:
		return nil
	default:
		return ErrSendBuffer
	}
}

// Close flushes queued messages, sends a close frame and releases the
// connection. It does not fire OnClose.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.outgoing)
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) readPump() {
	defer func() {
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() && c.events.OnClose != nil {
				c.events.OnClose(err)
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "transport").Msg("dropping malformed frame")
			continue
		}
		if c.events.OnMessage != nil {
			c.events.OnMessage(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case data, ok := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "transport").Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Done is closed after the writer has flushed and released the socket.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
