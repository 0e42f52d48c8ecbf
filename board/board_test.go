package board

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard(historySize int) *Board {
	logger := zerolog.Nop()
	return New(&logger, historySize)
}

func TestHistoryBound(t *testing.T) {
	b := newTestBoard(10)

	for i := 1; i <= 15; i++ {
		b.Post("alice", "m"+strconv.Itoa(i))
	}

	hist := b.History()
	require.Len(t, hist, 10)
	assert.Equal(t, "m6", hist[0].Body)
	assert.Equal(t, "m15", hist[9].Body)
}

func TestHistoryBelowCapacity(t *testing.T) {
	b := newTestBoard(10)

	b.Post("alice", "m1")
	b.Post("alice", "m2")

	hist := b.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "m1", hist[0].Body)
	assert.Equal(t, "m2", hist[1].Body)
}

func TestSubscribeReplaySplit(t *testing.T) {
	b := newTestBoard(10)

	for i := 1; i <= 12; i++ {
		b.Post("alice", "m"+strconv.Itoa(i))
	}
	sub := b.Subscribe()
	for i := 13; i <= 15; i++ {
		b.Post("alice", "m"+strconv.Itoa(i))
	}

	replay := sub.Replay()
	require.Len(t, replay, 10)
	assert.Equal(t, "m3", replay[0].Body)
	assert.Equal(t, "m12", replay[9].Body)

	// everything after the snapshot arrives on the feed, in order
	require.Len(t, sub.Feed(), 3)
	for i := 13; i <= 15; i++ {
		assert.True(t, strings.HasSuffix(<-sub.Feed(), " m"+strconv.Itoa(i)))
	}

	b.Unsubscribe(sub)
	_, open := <-sub.Feed()
	assert.False(t, open)
	assert.Equal(t, 0, b.Viewers())
}

// Replay plus feed must equal the full post sequence with no duplicate
// and no gap, wherever the subscription lands relative to the poster.
func TestReplayStreamExactness(t *testing.T) {
	const total = 40
	b := newTestBoard(10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			b.Post("alice", strconv.Itoa(i))
		}
	}()

	time.Sleep(time.Millisecond) // land somewhere mid-sequence
	sub := b.Subscribe()

	var bodies []string
	for _, msg := range sub.Replay() {
		bodies = append(bodies, msg.Body)
	}
	last := strconv.Itoa(total - 1)
	for len(bodies) == 0 || bodies[len(bodies)-1] != last {
		select {
		case text := <-sub.Feed():
			// feed carries rendered lines, recover the body
			bodies = append(bodies, text[strings.LastIndex(text, " ")+1:])
		case <-time.After(2 * time.Second):
			t.Fatal("feed stalled before the final message")
		}
	}
	<-done

	require.NotEmpty(t, bodies)
	first, err := strconv.Atoi(bodies[0])
	require.NoError(t, err)
	for i, body := range bodies {
		assert.Equal(t, strconv.Itoa(first+i), body, "sequence broken at offset %d", i)
	}
}

func TestConcurrentPostsPreservePerAuthorOrder(t *testing.T) {
	b := newTestBoard(10)
	sub := b.Subscribe()

	const perAuthor = 20
	var wg sync.WaitGroup
	wg.Add(2)
	for _, author := range []string{"alice", "bob"} {
		go func(author string) {
			defer wg.Done()
			for i := 0; i < perAuthor; i++ {
				b.Post(author, author+"-"+strconv.Itoa(i))
			}
		}(author)
	}
	wg.Wait()

	require.Len(t, sub.Feed(), 2*perAuthor)
	next := map[string]int{"alice": 0, "bob": 0}
	for i := 0; i < 2*perAuthor; i++ {
		text := <-sub.Feed()
		matched := false
		for author := range next {
			if strings.HasSuffix(text, " "+author+"-"+strconv.Itoa(next[author])) {
				next[author]++
				matched = true
				break
			}
		}
		assert.True(t, matched, "out-of-order delivery: %q", text)
	}
	assert.Equal(t, perAuthor, next["alice"])
	assert.Equal(t, perAuthor, next["bob"])

	b.Unsubscribe(sub)
}

func TestAnnounceSkipsHistory(t *testing.T) {
	b := newTestBoard(10)
	sub := b.Subscribe()

	b.Announce("alice has logged in")

	assert.Empty(t, b.History())
	assert.Equal(t, "alice has logged in", <-sub.Feed())

	b.Unsubscribe(sub)
}

func TestStalledSubscriberDropped(t *testing.T) {
	b := newTestBoard(10)
	stalled := b.Subscribe()

	// fill the buffer exactly, the subscriber is still considered alive
	for i := 0; i < subscriberBuffer; i++ {
		b.Post("alice", strconv.Itoa(i))
	}
	require.Equal(t, 1, b.Viewers())

	// the overflowing post dequeues the stalled viewer but still reaches
	// the healthy one
	live := b.Subscribe()
	b.Post("alice", "overflow")

	assert.Equal(t, 1, b.Viewers())
	assert.Len(t, live.Feed(), 1)
	assert.True(t, strings.HasSuffix(<-live.Feed(), " overflow"))

	drained := 0
	for range stalled.Feed() {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained)

	// unsubscribing an already-dropped viewer is a no-op
	b.Unsubscribe(stalled)
	assert.Equal(t, 1, b.Viewers())

	b.Close()
	_, open := <-live.Feed()
	assert.False(t, open)
	assert.Equal(t, 0, b.Viewers())
}
