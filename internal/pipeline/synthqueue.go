package pipeline

import (
	"context"
	"sync"

	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/tts"
)

type synthJob struct {
	seq  int
	text string
}

type synthResult struct {
	seq   int
	text  string
	audio []byte
	err   error
}

// SynthQueue synthesizes segments with a bounded worker pool while
// delivering results strictly in submission order. A segment whose
// synthesis fails is skipped; later segments still play.
//
// One queue serves one turn: submit segments as the generator produces
// them, then call Wait to drain before committing the turn.
type SynthQueue struct {
	ctx  context.Context
	emit func(text string, audio []byte)

	jobs    chan synthJob
	results chan synthResult
	done    chan struct{}

	workers sync.WaitGroup
	nextSeq int
}

// NewSynthQueue starts the worker pool and the in-order dispatcher
func NewSynthQueue(ctx context.Context, synth tts.Synthesizer, concurrency int, emit func(text string, audio []byte)) *SynthQueue {
	if concurrency < 1 {
		concurrency = 1
	}

	q := &SynthQueue{
		ctx:     ctx,
		emit:    emit,
		jobs:    make(chan synthJob, 16),
		results: make(chan synthResult, 16),
		done:    make(chan struct{}),
	}

	q.workers.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go q.worker(synth)
	}

	go func() {
		q.workers.Wait()
		close(q.results)
	}()
	go q.dispatch()

	return q
}

// Submit queues a segment for synthesis. Not safe for concurrent callers;
// the single generation loop is the only producer.
func (q *SynthQueue) Submit(text string) {
	job := synthJob{seq: q.nextSeq, text: text}
	q.nextSeq++
	q.jobs <- job
}

// Wait closes the queue and blocks until every submitted segment has been
// delivered or skipped
func (q *SynthQueue) Wait() {
	close(q.jobs)
	<-q.done
}

func (q *SynthQueue) worker(synth tts.Synthesizer) {
	defer q.workers.Done()

	for job := range q.jobs {
		if err := q.ctx.Err(); err != nil {
			q.results <- synthResult{seq: job.seq, text: job.text, err: err}
			continue
		}
		audio, err := synth.Synthesize(q.ctx, job.text)
		q.results <- synthResult{seq: job.seq, text: job.text, audio: audio, err: err}
	}
}

// dispatch reorders worker results back into submission order
func (q *SynthQueue) dispatch() {
	defer close(q.done)

	log := observability.GetLogger()
	pending := make(map[int]synthResult)
	next := 0

	for res := range q.results {
		pending[res.seq] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if r.err != nil {
				log.Warn().Err(r.err).Str("segment", r.text).Msg("Skipping failed synthesis segment")
				continue
			}
			q.emit(r.text, r.audio)
		}
	}
}
