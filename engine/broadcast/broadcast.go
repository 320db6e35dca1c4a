// Package broadcast fans leveled, place-scoped messages out to subscribed
// channels from a single delivery loop.
package broadcast

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/types"
)

// DefaultPace is the pause after a message some channel accepted.
const DefaultPace = 500 * time.Millisecond

// Message is one rendered broadcast. Text is final: the delivery loop never
// looks at world state.
type Message struct {
	Level  types.Level
	Text   string
	Places []string // empty: not tied to a place
	To     Channel  // optional direct recipient, bypasses filters
}

// InPlace reports whether the message is scoped to place.
func (m Message) InPlace(place string) bool {
	for _, p := range m.Places {
		if p == place {
			return true
		}
	}
	return false
}

// Channel receives delivered messages. Deliver reports whether the message
// was actually sent somewhere.
type Channel interface {
	Deliver(ctx context.Context, m Message) (bool, error)
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, m Message) (bool, error)

// Deliver calls f.
func (f ChannelFunc) Deliver(ctx context.Context, m Message) (bool, error) {
	return f(ctx, m)
}

// Filter selects which messages a subscription receives.
type Filter struct {
	Min    types.Level // lowest level delivered
	Below  types.Level // if non-zero, levels >= Below are not delivered
	Places []string    // if set, only messages scoped to one of these places
}

func (f Filter) match(m Message) bool {
	if m.Level < f.Min {
		return false
	}
	if f.Below != 0 && m.Level >= f.Below {
		return false
	}
	if len(f.Places) == 0 {
		return true
	}
	for _, p := range f.Places {
		if m.InPlace(p) {
			return true
		}
	}
	return false
}

type subscription struct {
	ch     Channel
	filter Filter
}

// Hub owns the message queue and the subscriber set. Post never blocks;
// Run (or Flush) is the only consumer.
type Hub struct {
	mu     sync.Mutex
	queue  []Message
	subs   map[string]*subscription
	notify chan struct{}

	consume sync.Mutex // held while a message is being delivered
	pace    time.Duration
	log     logrus.FieldLogger
}

// Option configures a Hub.
type Option func(*Hub)

// WithPace sets the pause taken after an accepted message.
func WithPace(d time.Duration) Option {
	return func(h *Hub) { h.pace = d }
}

// WithLogger sets the hub's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Hub) { h.log = log }
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		subs:   map[string]*subscription{},
		notify: make(chan struct{}, 1),
		pace:   DefaultPace,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers ch under name, replacing any subscription with the
// same name. An empty name gets a random one. The name is returned.
func (h *Hub) Subscribe(name string, ch Channel, f Filter) string {
	if name == "" {
		name = uuid.NewString()
	}
	f.Places = append([]string(nil), f.Places...)

	h.mu.Lock()
	h.subs[name] = &subscription{ch: ch, filter: f}
	h.mu.Unlock()
	return name
}

// Unsubscribe removes the named subscription. Other subscribers are
// untouched.
func (h *Hub) Unsubscribe(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[name]; !ok {
		return false
	}
	delete(h.subs, name)
	return true
}

// Scope replaces the place filter of the named subscription.
func (h *Hub) Scope(name string, places ...string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[name]
	if !ok {
		return false
	}
	next := *sub
	next.filter.Places = append([]string(nil), places...)
	h.subs[name] = &next
	return true
}

// Subscribers returns the subscription names in sorted order.
func (h *Hub) Subscribers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.subs))
	for name := range h.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Post enqueues m.
func (h *Hub) Post(m Message) {
	h.mu.Lock()
	h.queue = append(h.queue, m)
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued messages.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

func (h *Hub) next() (Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return Message{}, false
	}
	m := h.queue[0]
	h.queue[0] = Message{}
	h.queue = h.queue[1:]
	return m, true
}

// Run delivers messages until ctx is done, pausing after every message
// that at least one channel accepted.
func (h *Hub) Run(ctx context.Context) error {
	for {
		m, ok := h.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-h.notify:
			}
			continue
		}

		if !h.deliver(ctx, m) || h.pace <= 0 {
			continue
		}
		timer := time.NewTimer(h.pace)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Flush delivers everything queued right now, without pacing, and returns
// the number of messages delivered.
func (h *Hub) Flush(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		m, ok := h.next()
		if !ok {
			break
		}
		h.deliver(ctx, m)
		n++
	}
	return n
}

func (h *Hub) snapshot() []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.subs))
	for name := range h.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*subscription, len(names))
	for i, name := range names {
		out[i] = h.subs[name]
	}
	return out
}

func (h *Hub) deliver(ctx context.Context, m Message) bool {
	h.consume.Lock()
	defer h.consume.Unlock()

	h.log.WithFields(logrus.Fields{
		"level":  int(m.Level),
		"places": m.Places,
	}).Debugf("broadcast: %s", m.Text)

	accepted := false
	send := func(ch Channel) {
		ok, err := ch.Deliver(ctx, m)
		if err != nil {
			h.log.WithError(err).WithField("level", int(m.Level)).Warn("broadcast delivery failed")
			return
		}
		accepted = accepted || ok
	}

	if m.To != nil {
		send(m.To)
	}
	for _, sub := range h.snapshot() {
		if sub.filter.match(m) && !sameChannel(sub.ch, m.To) {
			send(sub.ch)
		}
	}
	return accepted
}

// sameChannel reports whether a and b are the same channel. Channels of
// incomparable types, such as ChannelFunc, never match.
func sameChannel(a, b Channel) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
