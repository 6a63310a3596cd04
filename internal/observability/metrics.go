package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_pipeline_active_sessions",
		Help: "Number of sessions with an open connection",
	})

	totalTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_turns_total",
		Help: "Total number of turns processed",
	}, []string{"status"}) // status: "completed" or "failed"

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_pipeline_turn_duration_seconds",
		Help:    "End-to-end duration of one turn in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	// Transcription metrics
	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_pipeline_transcription_latency_seconds",
		Help:    "Transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Generation metrics
	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_pipeline_generation_latency_seconds",
		Help:    "Time from generation start to stream completion in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Synthesis metrics
	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_pipeline_synthesis_latency_seconds",
		Help:    "Per-segment synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	segmentsFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_segments_total",
		Help: "Segments flushed for synthesis",
	}, []string{"reason"}) // reason: "punctuation", "forced", "stream_end"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_pipeline_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// TurnMetrics tracks timings for a single turn
type TurnMetrics struct {
	startTime           time.Time
	transcriptionStart  time.Time
	generationStart     time.Time
	mu                  sync.Mutex
}

// NewTurnMetrics creates a metrics tracker for one turn
func NewTurnMetrics() *TurnMetrics {
	return &TurnMetrics{startTime: time.Now()}
}

// RecordTranscriptionStart marks the start of transcription
func (m *TurnMetrics) RecordTranscriptionStart() {
	m.mu.Lock()
	m.transcriptionStart = time.Now()
	m.mu.Unlock()
}

// RecordTranscriptionEnd observes transcription latency
func (m *TurnMetrics) RecordTranscriptionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.transcriptionStart.IsZero() {
		transcriptionLatency.Observe(time.Since(m.transcriptionStart).Seconds())
	}
}

// RecordGenerationStart marks the start of the generation stream
func (m *TurnMetrics) RecordGenerationStart() {
	m.mu.Lock()
	m.generationStart = time.Now()
	m.mu.Unlock()
}

// RecordGenerationEnd observes generation latency
func (m *TurnMetrics) RecordGenerationEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.generationStart.IsZero() {
		generationLatency.Observe(time.Since(m.generationStart).Seconds())
	}
}

// RecordTurnEnd observes the full turn duration and outcome
func (m *TurnMetrics) RecordTurnEnd(success bool) {
	turnDuration.Observe(time.Since(m.startTime).Seconds())
	status := "completed"
	if !success {
		status = "failed"
	}
	totalTurns.WithLabelValues(status).Inc()
}

// RecordSessionOpen increments the active session gauge
func RecordSessionOpen() {
	activeSessions.Inc()
}

// RecordSessionClose decrements the active session gauge
func RecordSessionClose() {
	activeSessions.Dec()
}

// RecordSynthesisLatency observes one segment's synthesis latency
func RecordSynthesisLatency(d time.Duration) {
	synthesisLatency.Observe(d.Seconds())
}

// RecordSegmentFlush counts a flushed segment by flush reason
func RecordSegmentFlush(reason string) {
	segmentsFlushed.WithLabelValues(reason).Inc()
}

// RecordError counts an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes counts audio bytes by direction
func RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates the circuit breaker state gauge
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
