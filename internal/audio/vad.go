package audio

import "math"

// VADConfig holds configuration for voice activity detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Consecutive silence frames that mark end of speech
	FrameSize       int     // Samples per frame (320 for 16kHz = 20ms)
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   25,  // 500ms of silence (25 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
	}
}

// VADDetector segments a live sample stream into utterances using RMS energy.
// It accumulates samples while speech is active and hands back the whole
// utterance once enough trailing silence is seen.
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	utterance      []int16
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame feeds one frame of samples through the detector.
// Returns (speechStarted, utterance): utterance is non-nil exactly when the
// frame closed an utterance, and carries every sample from speech start
// through the silence tail.
func (v *VADDetector) ProcessFrame(samples []int16) (bool, []int16) {
	rms := CalculateRMS(samples)
	frameHasSpeech := rms > v.config.EnergyThreshold

	var speechStarted bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
			v.utterance = v.utterance[:0]
		}
		v.utterance = append(v.utterance, samples...)
		return speechStarted, nil
	}

	if !v.isSpeaking {
		return false, nil
	}

	// Keep the silence tail so the utterance does not end abruptly
	v.utterance = append(v.utterance, samples...)
	v.silenceCounter++
	if v.silenceCounter >= v.config.SilenceFrames {
		v.isSpeaking = false
		v.silenceCounter = 0
		done := make([]int16, len(v.utterance))
		copy(done, v.utterance)
		v.utterance = v.utterance[:0]
		return false, done
	}
	return false, nil
}

// Reset resets the detector state and discards any partial utterance
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.utterance = v.utterance[:0]
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// CalculateRMS calculates the root mean square of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DetectSilence reports whether samples fall under an energy threshold
func DetectSilence(samples []int16, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}
