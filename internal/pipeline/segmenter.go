package pipeline

import (
	"regexp"
	"strings"

	"github.com/neo1202/cf-ai-voice-email/internal/observability"
)

// Flush reasons reported to the segment callback and metrics
const (
	FlushPunctuation = "punctuation"
	FlushForced      = "forced"
	FlushStreamEnd   = "stream_end"
)

// sentencePattern matches a leading complete sentence: shortest run of text
// up to terminal punctuation, followed by whitespace or the end of the buffer.
var sentencePattern = regexp.MustCompile(`(?s)^(.+?[.!?])(?:\s+|$)`)

// Segmenter splits streamed generation text into speakable segments.
// Deltas accumulate in a buffer; complete sentences flush as they form,
// and a run-on buffer past maxChars flushes whole so playback never
// stalls behind a sentence that refuses to end.
type Segmenter struct {
	buffer   strings.Builder
	maxChars int
	emit     func(segment, reason string)
}

// NewSegmenter creates a segmenter that invokes emit for each flushed segment
func NewSegmenter(maxChars int, emit func(segment, reason string)) *Segmenter {
	return &Segmenter{
		maxChars: maxChars,
		emit:     emit,
	}
}

// Push appends a generation delta and flushes any segments it completes
func (s *Segmenter) Push(delta string) {
	if delta == "" {
		return
	}
	s.buffer.WriteString(delta)

	buf := s.buffer.String()
	for {
		m := sentencePattern.FindStringSubmatch(buf)
		if m == nil {
			break
		}
		buf = buf[len(m[0]):]
		s.flush(m[1], FlushPunctuation)
	}

	if len(buf) > s.maxChars {
		s.flush(buf, FlushForced)
		buf = ""
	}

	s.buffer.Reset()
	s.buffer.WriteString(buf)
}

// Finish flushes whatever remains in the buffer once the stream ends
func (s *Segmenter) Finish() {
	remainder := s.buffer.String()
	s.buffer.Reset()
	s.flush(remainder, FlushStreamEnd)
}

// Pending returns the unflushed buffer contents
func (s *Segmenter) Pending() string {
	return s.buffer.String()
}

func (s *Segmenter) flush(text, reason string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	observability.RecordSegmentFlush(reason)
	s.emit(text, reason)
}
