package wsproto

import (
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// SubscriptionType tags what a client subscribed to.
type SubscriptionType uint32

const (
	SubscriptionBlocks SubscriptionType = iota
	SubscriptionWitnesses
	SubscriptionMempool
)

// Subscription tracks one client's {id, type, created_at}, per spec §6.3.
type Subscription struct {
	ID        uint64
	Type      SubscriptionType
	CreatedAt time.Time
}

const (
	fieldSubID        = protowire.Number(1)
	fieldSubType      = protowire.Number(2)
	fieldSubCreatedAt = protowire.Number(3)
)

// Encode appends s's wire encoding to buf, used for the OpcodeSubscribed
// acknowledgement frame body.
func (s Subscription) Encode(buf []byte) []byte {
	buf = protowire.AppendTag(buf, fieldSubID, protowire.VarintType)
	buf = protowire.AppendVarint(buf, s.ID)
	buf = protowire.AppendTag(buf, fieldSubType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.Type))
	buf = protowire.AppendTag(buf, fieldSubCreatedAt, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.CreatedAt.Unix()))
	return buf
}

// Registry tracks live subscriptions per connection, assigning
// monotonically increasing ids.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	byConn map[string]map[uint64]Subscription
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byConn: make(map[string]map[uint64]Subscription)}
}

// Subscribe registers a new subscription for connID and returns it.
func (r *Registry) Subscribe(connID string, typ SubscriptionType) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := Subscription{ID: r.nextID, Type: typ, CreatedAt: time.Now()}
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[uint64]Subscription)
	}
	r.byConn[connID][sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription by id for connID.
func (r *Registry) Unsubscribe(connID string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn[connID], id)
}

// ForConn returns all subscriptions still active for connID.
func (r *Registry) ForConn(connID string) []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Subscription, 0, len(r.byConn[connID]))
	for _, s := range r.byConn[connID] {
		out = append(out, s)
	}
	return out
}

// Drop removes every subscription for connID, called on disconnect.
func (r *Registry) Drop(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, connID)
}

// Subscribers returns every connID currently subscribed to typ, used to
// fan a notification out to the right set of sockets.
func (r *Registry) Subscribers(typ SubscriptionType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for connID, subs := range r.byConn {
		for _, s := range subs {
			if s.Type == typ {
				out = append(out, connID)
				break
			}
		}
	}
	return out
}
