// Package fabric implements the inter-thread coordination fabric (spec
// §4.9): typed message-passing channels linking units, with
// fire-and-forget send and correlated request/response. Directly
// grounded on infrastructure/network/netadapter/router/route.go's Route
// type (a channel-backed enqueue/dequeue pair with a close signal) and
// netadapter.go's one-router-per-connection shape, generalized here from
// "one router per P2P connection" to "one Route per (unit, unit) link".
package fabric

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// MessageType tags a message's family, matching spec §4.9's enumerated
// families.
type MessageType string

const (
	LinkThread                    MessageType = "LinkThread"
	LinkThreadRequest              MessageType = "LinkThreadRequest"
	RpcMessage                    MessageType = "RpcMessage"
	BlockProcessed                MessageType = "BlockProcessed"
	CurrentIndexerBlock           MessageType = "CurrentIndexerBlock"
	StartIndexer                  MessageType = "StartIndexer"
	MempoolTransactionNotification MessageType = "MempoolTransactionNotification"
	ValidateBlockHeaders          MessageType = "ValidateBlockHeaders"
)

// UnitID identifies one running unit (ChainRpcPool, Mempool, Indexer,
// Consensus, Api, ...); replicated units (ChainRpcPool, Mempool, Api) use
// the same Kind with distinct Ordinal values.
type UnitID struct {
	Kind    string
	Ordinal int
}

func (u UnitID) String() string {
	return fmt.Sprintf("%s#%d", u.Kind, u.Ordinal)
}

// Message is one envelope carried over a Route: a tagged type plus an
// opaque payload, and — for a request — a correlation id a response must
// echo back.
type Message struct {
	Type          MessageType
	Data          interface{}
	CorrelationID uint64
}

// ThreadResponse wraps a request's reply payload, matching spec §4.9.
type ThreadResponse struct {
	Data interface{}
	Err  error
}

// ErrTimedOut is returned by Request when the timeout elapses before a
// response with the matching correlation id arrives. A late response is
// simply discarded when it finally shows up on the reverse channel.
var ErrTimedOut = errors.New("request timed out")

// Route is a bidirectional typed channel between two units: one
// direction carries Messages, the reverse direction correlates
// ThreadResponses back to pending Requests by id, exactly the
// push-not-poll shape the teacher's Route/router pair uses.
type Route struct {
	from, to UnitID

	inbound  chan Message
	outbound chan Message

	nextCorrelation uint64
	mu              sync.Mutex
	pending         map[uint64]chan ThreadResponse

	closeOnce sync.Once
	closed    chan struct{}
}

func newRoute(from, to UnitID) *Route {
	return &Route{
		from:     from,
		to:       to,
		inbound:  make(chan Message, 256),
		outbound: make(chan Message, 256),
		pending:  make(map[uint64]chan ThreadResponse),
		closed:   make(chan struct{}),
	}
}

// Close shuts the route down; blocked Send/Receive calls on it return a
// "route is closed" error.
func (r *Route) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
}

// Fabric links units pairwise and dispatches send/request traffic between
// them. One Fabric instance is shared by every unit in the process; there
// is no global ordering across different links, only within one (spec
// §4.9's ordering guarantee).
type Fabric struct {
	mu     sync.RWMutex
	routes map[UnitID]map[UnitID]*Route
}

// New builds an empty Fabric.
func New() *Fabric {
	return &Fabric{routes: make(map[UnitID]map[UnitID]*Route)}
}

// Link establishes a bidirectional channel between a and b. Calling Link
// again for the same pair is a no-op if already linked.
func (f *Fabric) Link(a, b UnitID) *Route {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing := f.routeLocked(a, b); existing != nil {
		return existing
	}

	route := newRoute(a, b)
	f.setRouteLocked(a, b, route)
	f.setRouteLocked(b, a, route)
	return route
}

func (f *Fabric) routeLocked(a, b UnitID) *Route {
	if m, ok := f.routes[a]; ok {
		return m[b]
	}
	return nil
}

func (f *Fabric) setRouteLocked(a, b UnitID, r *Route) {
	m, ok := f.routes[a]
	if !ok {
		m = make(map[UnitID]*Route)
		f.routes[a] = m
	}
	m[b] = r
}

func (f *Fabric) routeBetween(from, to UnitID) (*Route, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r := f.routeLocked(from, to)
	if r == nil {
		return nil, errors.Errorf("no link established between %s and %s", from, to)
	}
	return r, nil
}

// Send is fire-and-forget: it enqueues msg on the from->to direction of
// their link and returns immediately. Messages from a given from to a
// given to are delivered in send order.
func (f *Fabric) Send(from, to UnitID, msg Message) error {
	route, err := f.routeBetween(from, to)
	if err != nil {
		return err
	}
	target := route.inbound
	if route.from != from {
		target = route.outbound
	}
	select {
	case target <- msg:
		return nil
	case <-route.closed:
		return errors.Errorf("route %s<->%s is closed", from, to)
	}
}

// Receive blocks until a Message addressed to `who` arrives on its link
// with `peer`, or ctx is cancelled.
func (f *Fabric) Receive(ctx context.Context, who, peer UnitID) (Message, error) {
	route, err := f.routeBetween(who, peer)
	if err != nil {
		return Message{}, err
	}
	source := route.inbound
	if route.from == who {
		source = route.outbound
	}
	select {
	case msg := <-source:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-route.closed:
		return Message{}, errors.Errorf("route %s<->%s is closed", who, peer)
	}
}

// Request sends msg to `to` and blocks until a correlated ThreadResponse
// arrives, the timeout elapses (resolving ErrTimedOut and discarding any
// later response), or ctx is cancelled.
func (f *Fabric) Request(ctx context.Context, from, to UnitID, msg Message, timeout time.Duration) (ThreadResponse, error) {
	route, err := f.routeBetween(from, to)
	if err != nil {
		return ThreadResponse{}, err
	}

	id := atomic.AddUint64(&route.nextCorrelation, 1)
	msg.CorrelationID = id

	replyCh := make(chan ThreadResponse, 1)
	route.mu.Lock()
	route.pending[id] = replyCh
	route.mu.Unlock()
	defer func() {
		route.mu.Lock()
		delete(route.pending, id)
		route.mu.Unlock()
	}()

	if err := f.Send(from, to, msg); err != nil {
		return ThreadResponse{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-replyCh:
		return resp, nil
	case <-timer.C:
		return ThreadResponse{}, ErrTimedOut
	case <-ctx.Done():
		return ThreadResponse{}, ctx.Err()
	case <-route.closed:
		return ThreadResponse{}, errors.Errorf("route %s<->%s is closed", from, to)
	}
}

// Reply delivers a correlated response back to whichever Request sent
// correlationID; a late reply after the requester's timeout has fired
// finds no pending entry and is silently dropped.
func (f *Fabric) Reply(from, to UnitID, correlationID uint64, resp ThreadResponse) {
	route, err := f.routeBetween(from, to)
	if err != nil {
		return
	}
	route.mu.Lock()
	ch, ok := route.pending[correlationID]
	route.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}
