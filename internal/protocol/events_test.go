package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	events := []Event{
		StatusEvent{Text: "ready"},
		TranscriptEvent{Text: "hello there"},
		AssistantEvent{Text: "Hi.", Audio: []byte{0x52, 0x49, 0x46, 0x46, 1, 2, 3}},
		CommandEvent{Data: CommandClear},
	}

	for _, ev := range events {
		data, err := Encode(ev)
		if err != nil {
			t.Fatalf("Encode(%T) failed: %v", ev, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%T) failed: %v", ev, err)
		}

		switch want := ev.(type) {
		case StatusEvent:
			if got, ok := got.(StatusEvent); !ok || got.Text != want.Text {
				t.Errorf("round trip mismatch: want %+v, got %+v", want, got)
			}
		case TranscriptEvent:
			if got, ok := got.(TranscriptEvent); !ok || got.Text != want.Text {
				t.Errorf("round trip mismatch: want %+v, got %+v", want, got)
			}
		case AssistantEvent:
			g, ok := got.(AssistantEvent)
			if !ok || g.Text != want.Text || !bytes.Equal(g.Audio, want.Audio) {
				t.Errorf("round trip mismatch: want %+v, got %+v", want, got)
			}
		case CommandEvent:
			if got, ok := got.(CommandEvent); !ok || got.Data != want.Data {
				t.Errorf("round trip mismatch: want %+v, got %+v", want, got)
			}
		}
	}
}

func TestEncode_WireFormat(t *testing.T) {
	data, err := Encode(StatusEvent{Text: "ready"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := `{"type":"status","text":"ready"}`
	if string(data) != want {
		t.Errorf("Expected wire form %s, got %s", want, data)
	}

	data, err = Encode(CommandEvent{Data: "clear"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want = `{"type":"cmd","data":"clear"}`
	if string(data) != want {
		t.Errorf("Expected wire form %s, got %s", want, data)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"bogus","text":"x"}`))
	if err == nil {
		t.Fatal("Expected error for unknown event type")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("Expected error to name the unknown type, got %v", err)
	}
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"text":"x"}`))
	if err == nil {
		t.Error("Expected error for frame without type field")
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if err == nil {
		t.Error("Expected error for malformed frame")
	}
}

func TestDecode_AssistantAudioBase64(t *testing.T) {
	// encoding/json base64-encodes []byte; "UklGRg==" is the RIFF magic.
	ev, err := Decode([]byte(`{"type":"assistant","text":"Hi.","audio":"UklGRg=="}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	a, ok := ev.(AssistantEvent)
	if !ok {
		t.Fatalf("Expected AssistantEvent, got %T", ev)
	}
	if !bytes.Equal(a.Audio, []byte("RIFF")) {
		t.Errorf("Expected audio bytes 'RIFF', got %q", a.Audio)
	}
}
