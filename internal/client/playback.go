package client

import (
	"context"
	"sync"

	"github.com/neo1202/cf-ai-voice-email/internal/observability"
)

// Player renders one audio clip and returns when playback finishes.
// Cancelling the context stops playback early.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// PlaybackQueue plays assistant audio clips strictly in arrival order,
// one at a time. A clip that fails to play is skipped so the conversation
// keeps moving. Speaking stays true across the gap between consecutive
// clips as long as any clip is queued or playing.
type PlaybackQueue struct {
	player Player

	mu         sync.Mutex
	cond       *sync.Cond
	queue      [][]byte
	pending    int
	playing    bool
	playCancel context.CancelFunc
	closed     bool

	done chan struct{}
}

// NewPlaybackQueue creates the queue and starts its single playback driver
func NewPlaybackQueue(player Player) *PlaybackQueue {
	q := &PlaybackQueue{
		player: player,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Enqueue adds a clip to the tail of the queue
func (q *PlaybackQueue) Enqueue(audio []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.queue = append(q.queue, audio)
	q.pending++
	q.cond.Signal()
}

// Speaking reports whether any clip is queued or currently playing
func (q *PlaybackQueue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending > 0
}

// Playing reports whether a clip is being rendered right now
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// Clear drops all queued clips and interrupts the one playing
func (q *PlaybackQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending -= len(q.queue)
	q.queue = nil
	if q.playCancel != nil {
		q.playCancel()
	}
}

// Close drains nothing further: queued clips are dropped, the current clip
// is interrupted, and the driver exits. Safe to call more than once.
func (q *PlaybackQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.pending -= len(q.queue)
	q.queue = nil
	if q.playCancel != nil {
		q.playCancel()
	}
	q.cond.Signal()
	q.mu.Unlock()

	<-q.done
}

func (q *PlaybackQueue) run() {
	defer close(q.done)
	log := observability.GetLogger()

	for {
		q.mu.Lock()
		for len(q.queue) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}

		clip := q.queue[0]
		q.queue = q.queue[1:]
		q.playing = true
		ctx, cancel := context.WithCancel(context.Background())
		q.playCancel = cancel
		q.mu.Unlock()

		if err := q.player.Play(ctx, clip); err != nil {
			log.Warn().Err(err).Msg("Skipping clip that failed to play")
		}
		cancel()

		q.mu.Lock()
		q.playing = false
		q.playCancel = nil
		q.pending--
		q.mu.Unlock()
	}
}
