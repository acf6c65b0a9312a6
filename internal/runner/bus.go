package runner

import (
	"context"
	"sync"

	"github.com/scriptdeck/scriptdeck/internal/model"
)

// subBuffer is the per subscriber queue size. A subscriber lagging
// behind it starts losing its oldest pending events.
const subBuffer = 64

// Bus fans lifecycle events out to any number of subscribers without
// ever blocking the publisher.
type Bus struct {
	mx     sync.Mutex
	subs   map[int]chan model.Event
	next   int
	done   chan struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan model.Event),
		done: make(chan struct{}),
	}
}

// Publish delivers ev to every current subscriber. A full subscriber
// queue drops its oldest pending event first (drop-oldest policy).
func (b *Bus) Publish(ev model.Event) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber and returns its channel. The
// subscription ends and the channel is closed when ctx is cancelled or
// the bus is closed. Events published before Subscribe are not replayed.
func (b *Bus) Subscribe(ctx context.Context) <-chan model.Event {
	ch := make(chan model.Event, subBuffer)

	b.mx.Lock()
	if b.closed {
		b.mx.Unlock()
		close(ch)
		return ch
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mx.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.unsubscribe(id)
	}()
	return ch
}

func (b *Bus) unsubscribe(id int) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Close ends all subscriptions. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mx.Lock()
	if b.closed {
		b.mx.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.mx.Unlock()
}
