package broadcast

import "sync"

// Hub connects in-process endpoints by channel name. Each subscription
// owns a mailbox drained by its own goroutine, so Publish never waits on
// a handler and messages from one publisher arrive in publish order.
type Hub struct {
	mu        sync.Mutex
	idle      *sync.Cond
	endpoints map[string][]*Endpoint
	pending   int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	hub := &Hub{endpoints: make(map[string][]*Endpoint)}
	hub.idle = sync.NewCond(&hub.mu)
	return hub
}

// Open returns a new endpoint attached to the named channel.
func (hub *Hub) Open(name string) *Endpoint {
	endpoint := &Endpoint{hub: hub, name: name}
	hub.mu.Lock()
	hub.endpoints[name] = append(hub.endpoints[name], endpoint)
	hub.mu.Unlock()
	return endpoint
}

// Flush blocks until every queued delivery, including deliveries queued by
// handlers while flushing, has been handled.
func (hub *Hub) Flush() {
	hub.mu.Lock()
	for hub.pending > 0 {
		hub.idle.Wait()
	}
	hub.mu.Unlock()
}

// Listeners returns the number of open endpoints on the named channel.
func (hub *Hub) Listeners(name string) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.endpoints[name])
}

func (hub *Hub) settle(count int) {
	hub.mu.Lock()
	hub.settleLocked(count)
	hub.mu.Unlock()
}

func (hub *Hub) settleLocked(count int) {
	hub.pending -= count
	if hub.pending <= 0 {
		hub.pending = 0
		hub.idle.Broadcast()
	}
}

// Endpoint is one listener on a hub channel.
type Endpoint struct {
	hub    *Hub
	name   string
	subs   []*subscription
	closed bool
}

// Name returns the channel name.
func (endpoint *Endpoint) Name() string {
	return endpoint.name
}

// Publish queues msg for every other endpoint on the same channel.
func (endpoint *Endpoint) Publish(msg Message) error {
	hub := endpoint.hub
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if endpoint.closed {
		return ErrClosed
	}
	for _, peer := range hub.endpoints[endpoint.name] {
		if peer == endpoint {
			continue
		}
		for _, sub := range peer.subs {
			if sub.push(msg) {
				hub.pending++
			}
		}
	}
	return nil
}

// Subscribe registers handler. Handlers run on a dedicated goroutine.
func (endpoint *Endpoint) Subscribe(handler Handler) func() {
	hub := endpoint.hub
	sub := newSubscription(handler)

	hub.mu.Lock()
	if endpoint.closed {
		hub.mu.Unlock()
		return func() {}
	}
	endpoint.subs = append(endpoint.subs, sub)
	hub.mu.Unlock()

	go sub.run(hub)

	return func() {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		for index, existing := range endpoint.subs {
			if existing == sub {
				endpoint.subs = append(endpoint.subs[:index], endpoint.subs[index+1:]...)
				break
			}
		}
		hub.settleLocked(sub.close())
	}
}

// Close detaches the endpoint and stops its subscriptions. Queued
// deliveries are dropped.
func (endpoint *Endpoint) Close() error {
	hub := endpoint.hub
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if endpoint.closed {
		return nil
	}
	endpoint.closed = true

	peers := hub.endpoints[endpoint.name]
	for index, peer := range peers {
		if peer == endpoint {
			peers = append(peers[:index], peers[index+1:]...)
			break
		}
	}
	if len(peers) == 0 {
		delete(hub.endpoints, endpoint.name)
	} else {
		hub.endpoints[endpoint.name] = peers
	}

	dropped := 0
	for _, sub := range endpoint.subs {
		dropped += sub.close()
	}
	endpoint.subs = nil
	hub.settleLocked(dropped)
	return nil
}

type subscription struct {
	handler Handler

	mu     sync.Mutex
	ready  *sync.Cond
	queue  []Message
	closed bool
}

func newSubscription(handler Handler) *subscription {
	sub := &subscription{handler: handler}
	sub.ready = sync.NewCond(&sub.mu)
	return sub
}

func (sub *subscription) push(msg Message) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return false
	}
	sub.queue = append(sub.queue, msg)
	sub.ready.Signal()
	return true
}

// close marks the subscription closed and returns the number of dropped
// deliveries.
func (sub *subscription) close() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return 0
	}
	sub.closed = true
	dropped := len(sub.queue)
	sub.queue = nil
	sub.ready.Signal()
	return dropped
}

func (sub *subscription) run(hub *Hub) {
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.closed {
			sub.ready.Wait()
		}
		if sub.closed {
			sub.mu.Unlock()
			return
		}
		msg := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		sub.handler(msg)
		hub.settle(1)
	}
}
