package sockets

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("closed connection")

const defaultHandshakeTimeout = 15 * time.Second

type Connection interface {
	Dial(ctx context.Context, url string) error
	Send(msg Msg) error
	// Done is closed once the read loop has stopped.
	Done() <-chan struct{}
	io.Closer
}

type Conn struct {
	ws               *websocket.Conn
	writeMu          sync.Mutex
	mu               sync.Mutex
	closed           bool
	done             chan struct{}
	sslSkipVerify    bool
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	messageType      int
	onError          func(err error)
	onMessage        func([]byte, Connection)
	onConnected      func(Connection)
}

func New(opts ...func(*Conn)) Connection {
	c := &Conn{
		handshakeTimeout: defaultHandshakeTimeout,
		messageType:      websocket.BinaryMessage,
		closed:           true,
		done:             make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Msg is the message structure.
type Msg struct {
	Body []byte
}

// Closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.ws == nil {
		c.closed = true
		return nil
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Send(msg Msg) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.writeMu.Lock()
	err := c.ws.WriteMessage(c.messageType, msg.Body)
	c.writeMu.Unlock()
	if err != nil {
		_ = c.Close()
		if c.onError != nil {
			c.onError(err)
		}
		return err
	}
	return nil
}

func (c *Conn) Dial(ctx context.Context, url string) error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: c.handshakeTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: c.sslSkipVerify,
		},
	}
	conn, res, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if res != nil {
			return fmt.Errorf("dial %s: %s: %w", url, res.Status, err)
		}
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c.mu.Lock()
	c.ws = conn
	c.closed = false
	c.mu.Unlock()

	if c.onConnected != nil {
		go c.onConnected(c)
	}
	go c.readLoop()
	c.setupPing()
	return nil
}

// readLoop delivers frames in arrival order on a single goroutine.
func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			closedByUs := c.isClosed()
			_ = c.Close()
			if c.onError != nil && !closedByUs {
				c.onError(err)
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg, c)
		}
	}
}

func (c *Conn) setupPing() {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
			}
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pingInterval))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}()
}
