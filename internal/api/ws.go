package api

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
	"github.com/btc-vision/opnet-node-sub009/internal/wsproto"
)

// minProtocolVersion/currentProtocolVersion/maxProtocolVersion are the
// {MIN, PROTOCOL, MAX} handshake triple this node advertises (spec
// §6.3). Mirrors the teacher's maxProtocolVersion constant in
// infrastructure/network/rpc/rpcserver.go, extended to the three-way
// bound the WebSocket protocol version handshake needs.
const (
	minProtocolVersion = 1
	currentProtocolVersion = 1
	maxProtocolVersion = 1
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHub fans block/witness/mempool notifications out to subscribed
// connections over binary protobuf frames (spec §6.3). One Hub serves
// every live connection; each connection gets its own goroutine pumping
// writes off a buffered channel so a slow reader never blocks the
// notifier.
type WSHub struct {
	log  *logrus.Entry
	subs *wsproto.Registry

	mu      sync.Mutex
	conns   map[string]*wsConn
	nextID  uint64
}

type wsConn struct {
	id   string
	conn *websocket.Conn
	out  chan wsproto.Frame
}

// NewWSHub builds an empty Hub.
func NewWSHub(log *logrus.Entry) *WSHub {
	return &WSHub{
		log:   log,
		subs:  wsproto.NewRegistry(),
		conns: make(map[string]*wsConn),
	}
}

// Upgrade handles the HTTP-to-WebSocket upgrade and runs the connection's
// read/write loops until it closes. Registered on the API's mux.Router
// under /ws.
func (h *WSHub) Upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.nextID++
	id := strconv.FormatUint(h.nextID, 10)
	c := &wsConn{id: id, conn: conn, out: make(chan wsproto.Frame, 64)}
	h.conns[id] = c
	h.mu.Unlock()

	h.sendHandshake(c)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *WSHub) sendHandshake(c *wsConn) {
	pv := wsproto.ProtocolVersion{Min: minProtocolVersion, Protocol: currentProtocolVersion, Max: maxProtocolVersion}
	c.out <- wsproto.Frame{Opcode: wsproto.OpcodeHandshake, Body: pv.Encode(nil)}
}

func (h *WSHub) writeLoop(c *wsConn) {
	for f := range c.out {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, wsproto.Encode(f)); err != nil {
			h.log.WithError(err).Debug("websocket write failed")
			return
		}
	}
}

func (h *WSHub) readLoop(c *wsConn) {
	defer h.disconnect(c)
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		frame, err := wsproto.Decode(data)
		if err != nil {
			h.log.WithError(err).Debug("malformed websocket frame")
			continue
		}
		h.handleInbound(c, frame)
	}
}

func (h *WSHub) handleInbound(c *wsConn, f wsproto.Frame) {
	switch f.Opcode {
	case wsproto.OpcodeSubscribe:
		if len(f.Body) == 0 {
			return
		}
		sub := h.subs.Subscribe(c.id, wsproto.SubscriptionType(f.Body[0]))
		c.out <- wsproto.Frame{Opcode: wsproto.OpcodeSubscribed, Body: sub.Encode(nil)}
	case wsproto.OpcodeUnsubscribe:
		if len(f.Body) >= 8 {
			id := beUint64(f.Body)
			h.subs.Unsubscribe(c.id, id)
		}
	case wsproto.OpcodePing:
		c.out <- wsproto.Frame{Opcode: wsproto.OpcodePong}
	}
}

func (h *WSHub) disconnect(c *wsConn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	h.subs.Drop(c.id)
	close(c.out)
	_ = c.conn.Close()
}

// NotifyBlock fans a BlockProcessed event out to every block-subscribed
// connection.
func (h *WSHub) NotifyBlock(header *types.BlockHeader) {
	h.fanOut(wsproto.SubscriptionBlocks, wsproto.Frame{Opcode: wsproto.OpcodeBlockNotify, Body: header.ChecksumRoot[:]})
}

// NotifyWitness fans a recorded witness out to every witness-subscribed
// connection.
func (h *WSHub) NotifyWitness(w *types.Witness) {
	h.fanOut(wsproto.SubscriptionWitnesses, wsproto.Frame{Opcode: wsproto.OpcodeWitnessNotify, Body: w.PubKey[:]})
}

// NotifyMempool fans a new pending transaction id out to every
// mempool-subscribed connection.
func (h *WSHub) NotifyMempool(id types.Hash) {
	h.fanOut(wsproto.SubscriptionMempool, wsproto.Frame{Opcode: wsproto.OpcodeMempoolNotify, Body: id[:]})
}

func (h *WSHub) fanOut(typ wsproto.SubscriptionType, f wsproto.Frame) {
	for _, connID := range h.subs.Subscribers(typ) {
		h.mu.Lock()
		c, ok := h.conns[connID]
		h.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case c.out <- f:
		default:
			h.log.WithField("conn", connID).Warn("websocket outbound buffer full, dropping notification")
		}
	}
}

func beUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
