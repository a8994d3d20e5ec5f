package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/automoto/boxman/shared/messages"
	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return "disconnected"
}

var logger = log.WithPrefix("client")

// Client manages a WebSocket connection to the game server and implements
// Channel. Every payload travels inside a messages.Packet; the channel kind
// only tags it, the socket itself is ordered and reliable.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type Client struct {
	mu sync.RWMutex

	state     ClientState
	lastError error
	conn      *websocket.Conn

	inbox *Queue
}

func NewClient(inboxLimit int) *Client {
	return &Client{
		state: StateDisconnected,
		inbox: NewQueue(inboxLimit),
	}
}

// Connect dials the server in a background goroutine.
func (c *Client) Connect(address string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		logger.Info("connected to server", "addr", address)
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()
	})

	router.On(func(_ *router.NetworkClient, pkt messages.Packet) {
		kind := ChannelKind(pkt.Channel)
		if !kind.Valid() {
			logger.Warn("dropping packet on unknown channel", "channel", pkt.Channel)
			return
		}
		c.inbox.Push(kind, pkt.Payload)
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		logger.Info("disconnected", "err", err)
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		logger.Warn("transport error", "err", err)
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// Send wraps payload in a packet and writes it to the socket.
func (c *Client) Send(kind ChannelKind, payload []byte) error {
	if !kind.Valid() {
		return ErrInvalidChannel
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := router.Serialize(messages.Packet{Channel: uint8(kind), Payload: payload})
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, data)
}

// TryReceive pops the oldest payload received on a channel. Non-blocking.
func (c *Client) TryReceive(kind ChannelKind) ([]byte, bool) {
	return c.inbox.Pop(kind)
}

func (c *Client) setError(err error) {
	logger.Error("client error", "err", err)
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
