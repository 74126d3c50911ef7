// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Event represents a message about the activity of the node. The kind is
// the component that raised it, like "state", "pow" or "block".
type Event struct {
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// NewEvent constructs an event from a raw message. The text before the
// first colon names the kind of the event.
func NewEvent(message string) Event {
	kind, rest, found := strings.Cut(message, ":")
	if !found {
		return Event{Kind: "node", Time: time.Now().UTC(), Message: message}
	}

	return Event{
		Kind:    strings.TrimSpace(kind),
		Time:    time.Now().UTC(),
		Message: strings.TrimSpace(rest),
	}
}

// subscriber is a registered receiver and the kinds of events it wants.
// No kinds means every event.
type subscriber struct {
	ch    chan Event
	kinds map[string]struct{}
}

func (s subscriber) wants(kind string) bool {
	if len(s.kinds) == 0 {
		return true
	}

	_, exists := s.kinds[kind]
	return exists
}

// =============================================================================

// Events maintains a mapping of unique id and subscribers so goroutines
// can register and receive events.
type Events struct {
	m  map[string]subscriber
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]subscriber),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.m {
		delete(evt.m, id)
		close(sub.ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used to
// receive events of the specified kinds. Calling Acquire again with the
// same id returns the same channel.
func (evt *Events) Acquire(id string, kinds ...string) chan Event {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if sub, exists := evt.m[id]; exists {
		return sub.ch
	}

	// Since an event will be dropped if the websocket receiver is
	// not ready to receive, this arbitrary buffer should give the receiver
	// enough time to not lose an event. Websocket send could take long.
	const eventBuffer = 100

	sub := subscriber{
		ch:    make(chan Event, eventBuffer),
		kinds: make(map[string]struct{}, len(kinds)),
	}
	for _, kind := range kinds {
		sub.kinds[kind] = struct{}{}
	}

	evt.m[id] = sub
	return sub.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(sub.ch)
	return nil
}

// Send signals an event to every subscriber that wants its kind. Send will
// not block waiting for a receiver on any given channel.
func (evt *Events) Send(ev Event) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, sub := range evt.m {
		if !sub.wants(ev.Kind) {
			continue
		}

		select {
		case sub.ch <- ev:
		default:
		}
	}
}
