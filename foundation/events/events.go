// Package events fans out node events to registered receivers. Every event
// handler message is published as a typed event so receivers can follow
// only the chain activity they care about.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// messageBuffer is the number of events a receiver can fall behind before
// events are dropped for it. Websocket send could take long.
const messageBuffer = 100

// Kind identifies what an event reports.
type Kind string

// Set of event kinds.
const (
	KindLog   Kind = "log"
	KindBlock Kind = "block"
	KindReorg Kind = "reorg"
)

// Message prefixes written by the node core for the typed kinds.
const (
	BlockPrefix = "state: block: "
	ReorgPrefix = "chain: reorg: "
)

// ParseKinds converts a comma separated list like "block,reorg" into kinds.
// An empty list means every kind.
func ParseKinds(list string) ([]Kind, error) {
	if list == "" {
		return nil, nil
	}

	var kinds []Kind
	for _, s := range strings.Split(list, ",") {
		switch k := Kind(strings.TrimSpace(s)); k {
		case KindLog, KindBlock, KindReorg:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown event kind %q", s)
		}
	}

	return kinds, nil
}

// Event is one message delivered to receivers.
type Event struct {
	Kind    Kind            `json:"kind"`
	Time    time.Time       `json:"time"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Classify builds the event for an event handler message. Block messages
// carry their JSON payload in Data.
func Classify(msg string, now time.Time) Event {
	switch {
	case strings.HasPrefix(msg, BlockPrefix):
		evt := Event{Kind: KindBlock, Time: now, Message: strings.TrimSpace(BlockPrefix)}
		if data := strings.TrimPrefix(msg, BlockPrefix); json.Valid([]byte(data)) {
			evt.Data = json.RawMessage(data)
		} else {
			evt.Message = msg
		}
		return evt

	case strings.HasPrefix(msg, ReorgPrefix):
		return Event{Kind: KindReorg, Time: now, Message: msg}
	}

	return Event{Kind: KindLog, Time: now, Message: msg}
}

// =============================================================================

type receiver struct {
	ch    chan Event
	kinds map[Kind]bool
}

func (r receiver) wants(k Kind) bool {
	return len(r.kinds) == 0 || r.kinds[k]
}

// Events maintains a mapping of unique id and receivers so goroutines
// can register and receive events.
type Events struct {
	m  map[string]receiver
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]receiver),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, r := range evt.m {
		delete(evt.m, id)
		close(r.ch)
	}
}

// Acquire takes a unique id and the kinds to follow, none meaning all, and
// returns a channel that can be used to receive events.
func (evt *Events) Acquire(id string, kinds ...Kind) <-chan Event {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if r, exists := evt.m[id]; exists {
		return r.ch
	}

	r := receiver{
		ch:    make(chan Event, messageBuffer),
		kinds: make(map[Kind]bool, len(kinds)),
	}
	for _, k := range kinds {
		r.kinds[k] = true
	}

	evt.m[id] = r
	return r.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	r, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(r.ch)
	return nil
}

// Count returns the number of registered receivers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send classifies the event handler message and publishes it.
func (evt *Events) Send(msg string) {
	evt.Publish(Classify(msg, time.Now().UTC()))
}

// Publish delivers the event to every receiver following its kind. Publish
// will not block waiting for a receiver on any given channel.
func (evt *Events) Publish(e Event) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, r := range evt.m {
		if !r.wants(e.Kind) {
			continue
		}

		select {
		case r.ch <- e:
		default:
		}
	}
}
