package core

import (
	"errors"
	"sync"

	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/protocol"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
)

var ErrVersionMismatch = errors.New("client version mismatch")

type packetSender interface {
	SendMessage(msg any) error
}

// conn adapts one necs websocket client to network.Channel. Router callbacks
// push into the inbox; the tick pops.
type conn struct {
	client packetSender
	inbox  *network.Queue

	id     uint64
	joined bool
}

func (c *conn) Send(kind network.ChannelKind, payload []byte) error {
	if !kind.Valid() {
		return network.ErrInvalidChannel
	}
	return c.client.SendMessage(messages.Packet{Channel: uint8(kind), Payload: payload})
}

func (c *conn) TryReceive(kind network.ChannelKind) ([]byte, bool) {
	return c.inbox.Pop(kind)
}

// Transport accepts websocket clients and feeds them to a Server. A client
// becomes a player once it sends a JoinRequest.
type Transport struct {
	server     *Server
	version    string
	inboxLimit int

	mu    sync.Mutex
	conns map[*router.NetworkClient]*conn
	ws    *transports.WsServerTransport
}

// NewTransport creates a transport. An empty version accepts any client.
func NewTransport(server *Server, version string, inboxLimit int) *Transport {
	return &Transport{
		server:     server,
		version:    version,
		inboxLimit: inboxLimit,
		conns:      make(map[*router.NetworkClient]*conn),
	}
}

// Listen registers the router callbacks and serves on port. It blocks.
func (t *Transport) Listen(port uint) error {
	router.OnConnect(func(client *router.NetworkClient) {
		t.onConnect(client)
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		t.onDisconnect(client, err)
	})

	router.On(func(client *router.NetworkClient, pkt messages.Packet) {
		t.onPacket(client, pkt)
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		logger.Warn("client error", "client", client.Id(), "err", err)
	})

	t.ws = transports.NewWsServerTransport(port, "", nil)
	logger.Info("listening", "port", port)
	return t.ws.Start()
}

func (t *Transport) onConnect(client *router.NetworkClient) {
	logger.Info("client connected", "client", client.Id())
	t.mu.Lock()
	t.conns[client] = &conn{client: client, inbox: network.NewQueue(t.inboxLimit)}
	t.mu.Unlock()
}

func (t *Transport) onDisconnect(client *router.NetworkClient, err error) {
	t.mu.Lock()
	c, ok := t.conns[client]
	delete(t.conns, client)
	joined := ok && c.joined
	t.mu.Unlock()

	logger.Info("client disconnected", "client", client.Id(), "err", err)
	if joined {
		t.server.Leave(c.id)
	}
}

func (t *Transport) onPacket(client *router.NetworkClient, pkt messages.Packet) {
	t.mu.Lock()
	c, ok := t.conns[client]
	t.mu.Unlock()
	if !ok {
		return
	}

	kind := network.ChannelKind(pkt.Channel)
	if !kind.Valid() {
		logger.Warn("dropping packet on unknown channel", "client", client.Id(), "channel", pkt.Channel)
		return
	}

	if kind == network.ReliableOrdered {
		msg, err := protocol.Decode(pkt.Payload)
		if err != nil {
			logger.Warn("dropping message", "client", client.Id(), "err", err)
			return
		}
		if req, ok := msg.(messages.JoinRequest); ok {
			t.handleJoin(c, req)
			return
		}
	}
	c.inbox.Push(kind, pkt.Payload)
}

func (t *Transport) handleJoin(c *conn, req messages.JoinRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.joined {
		return
	}

	err := ErrVersionMismatch
	if t.version == "" || req.Version == t.version {
		c.id, err = t.server.Join(c, req.PlayerName)
	}
	if err != nil {
		logger.Warn("join rejected", "name", req.PlayerName, "version", req.Version, "err", err)
		if payload, encErr := protocol.Encode(messages.JoinRejected{Reason: err.Error()}); encErr == nil {
			_ = c.Send(network.ReliableOrdered, payload)
		}
		return
	}
	c.joined = true
}
