package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedPlayer records clip order and can delay or fail per clip
type scriptedPlayer struct {
	mu     sync.Mutex
	played []string
	delay  time.Duration
	fail   map[string]bool
}

func (p *scriptedPlayer) Play(ctx context.Context, audio []byte) error {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[string(audio)] {
		return errors.New("playback device error")
	}
	p.played = append(p.played, string(audio))
	return nil
}

func (p *scriptedPlayer) playedClips() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestPlaybackQueue_PlaysInOrder(t *testing.T) {
	player := &scriptedPlayer{}
	q := NewPlaybackQueue(player)
	defer q.Close()

	q.Enqueue([]byte("clip-a"))
	q.Enqueue([]byte("clip-b"))
	q.Enqueue([]byte("clip-c"))

	waitUntil(t, func() bool { return len(player.playedClips()) == 3 })

	played := player.playedClips()
	if played[0] != "clip-a" || played[1] != "clip-b" || played[2] != "clip-c" {
		t.Errorf("Expected FIFO order, got %v", played)
	}
}

func TestPlaybackQueue_SpeakingAcrossGap(t *testing.T) {
	player := &scriptedPlayer{delay: 20 * time.Millisecond}
	q := NewPlaybackQueue(player)
	defer q.Close()

	q.Enqueue([]byte("clip-a"))
	q.Enqueue([]byte("clip-b"))

	if !q.Speaking() {
		t.Error("Expected Speaking true with clips queued")
	}

	// Speaking must hold through the whole run, including the gap
	// between clip-a ending and clip-b starting
	deadline := time.Now().Add(time.Second)
	for q.Speaking() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// The first moment Speaking goes false, both clips must have played;
	// a false reading in the inter-clip gap would leave only one
	if played := player.playedClips(); len(played) != 2 {
		t.Errorf("Speaking dropped with %d of 2 clips played", len(played))
	}
	if q.Speaking() {
		t.Error("Expected Speaking false after all clips finished")
	}
}

func TestPlaybackQueue_ErrorSkipsClip(t *testing.T) {
	player := &scriptedPlayer{fail: map[string]bool{"clip-bad": true}}
	q := NewPlaybackQueue(player)
	defer q.Close()

	q.Enqueue([]byte("clip-a"))
	q.Enqueue([]byte("clip-bad"))
	q.Enqueue([]byte("clip-c"))

	waitUntil(t, func() bool { return !q.Speaking() })

	played := player.playedClips()
	if len(played) != 2 || played[0] != "clip-a" || played[1] != "clip-c" {
		t.Errorf("Expected failed clip skipped, got %v", played)
	}
}

func TestPlaybackQueue_ClearDropsQueued(t *testing.T) {
	player := &scriptedPlayer{delay: 50 * time.Millisecond}
	q := NewPlaybackQueue(player)
	defer q.Close()

	q.Enqueue([]byte("clip-a"))
	q.Enqueue([]byte("clip-b"))
	q.Enqueue([]byte("clip-c"))

	waitUntil(t, func() bool { return q.Playing() })
	q.Clear()

	waitUntil(t, func() bool { return !q.Speaking() })
	if len(player.playedClips()) != 0 {
		t.Errorf("Expected interrupted clip and dropped queue, got %v", player.playedClips())
	}
}

func TestPlaybackQueue_CloseIsIdempotent(t *testing.T) {
	q := NewPlaybackQueue(&scriptedPlayer{})
	q.Close()
	q.Close()

	// Enqueue after close is a no-op
	q.Enqueue([]byte("clip"))
	if q.Speaking() {
		t.Error("Expected no activity after close")
	}
}
