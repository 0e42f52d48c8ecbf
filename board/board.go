// Package board implements the broadcast coordinator: the bounded message
// history and the set of subscribed viewers, kept consistent under a single
// mutex. A post becomes canonical (appended to history) and visible
// (fanned out to every subscriber) in one critical section, so a viewer
// subscribing concurrently with a post lands strictly before or strictly
// after it, never both, never neither.
package board

import (
	"sync"

	"github.com/adwski/netboard/model"
	"github.com/rs/zerolog"
)

const (
	DefaultHistorySize = 10

	// subscriberBuffer bounds how far a viewer may lag behind the feed
	// before it is considered dead and dropped.
	subscriberBuffer = 64
)

// Subscription is one viewer's view of the board: the history snapshot
// taken at subscribe time plus a live feed of everything after it.
type Subscription struct {
	id     uint64
	replay []model.Message
	feed   chan string
}

// Replay returns the history snapshot, oldest first.
func (s *Subscription) Replay() []model.Message {
	return s.replay
}

// Feed returns the live notification channel. It is closed when the
// subscription is cancelled, the board shuts down, or the subscriber
// stalls past its buffer.
func (s *Subscription) Feed() <-chan string {
	return s.feed
}

type Board struct {
	logger zerolog.Logger
	mx     *sync.Mutex
	hist   *history
	subs   map[uint64]chan string
	nextID uint64
}

func New(logger *zerolog.Logger, historySize int) *Board {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Board{
		logger: logger.With().Str("component", "board").Logger(),
		mx:     &sync.Mutex{},
		hist:   newHistory(historySize),
		subs:   make(map[uint64]chan string),
	}
}

// Post makes a message canonical and delivers it to every subscriber.
func (b *Board) Post(author, body string) model.Message {
	msg := model.NewMessage(author, body)

	b.mx.Lock()
	b.hist.push(msg)
	b.fanout(msg.String())
	b.mx.Unlock()

	b.logger.Debug().
		Str("author", author).
		Msg("message posted")
	return msg
}

// Announce delivers a notification to every subscriber without recording
// it in history. Used for join/leave events.
func (b *Board) Announce(text string) {
	b.mx.Lock()
	b.fanout(text)
	b.mx.Unlock()
}

// fanout delivers text to every subscriber. Callers must hold b.mx.
// A subscriber with a full buffer is stalled: it is dequeued and its
// feed closed, and delivery to the rest continues.
func (b *Board) fanout(text string) {
	for id, feed := range b.subs {
		select {
		case feed <- text:
		default:
			delete(b.subs, id)
			close(feed)
			b.logger.Warn().
				Uint64("subscriber", id).
				Msg("stalled subscriber dropped")
		}
	}
}

// Subscribe registers a viewer and snapshots history in the same critical
// section, so no post can land between the snapshot and the registration.
func (b *Board) Subscribe() *Subscription {
	feed := make(chan string, subscriberBuffer)

	b.mx.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = feed
	replay := b.hist.snapshot()
	b.mx.Unlock()

	b.logger.Debug().
		Uint64("subscriber", id).
		Int("replay", len(replay)).
		Msg("viewer subscribed")
	return &Subscription{
		id:     id,
		replay: replay,
		feed:   feed,
	}
}

// Unsubscribe removes a viewer and closes its feed. Safe to call after
// the board has already dropped the subscriber.
func (b *Board) Unsubscribe(sub *Subscription) {
	b.mx.Lock()
	feed, ok := b.subs[sub.id]
	if ok {
		delete(b.subs, sub.id)
		close(feed)
	}
	b.mx.Unlock()

	if ok {
		b.logger.Debug().
			Uint64("subscriber", sub.id).
			Msg("viewer unsubscribed")
	}
}

// History returns a snapshot of the current history, oldest first.
func (b *Board) History() []model.Message {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.hist.snapshot()
}

// Viewers returns the number of live subscriptions.
func (b *Board) Viewers() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.subs)
}

// Close drops all subscribers and closes their feeds.
func (b *Board) Close() {
	b.mx.Lock()
	for id, feed := range b.subs {
		delete(b.subs, id)
		close(feed)
	}
	b.mx.Unlock()
	b.logger.Debug().Msg("board closed")
}
