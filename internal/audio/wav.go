package audio

import (
	"encoding/binary"
	"fmt"
)

// Utterance audio is 16 kHz mono 16-bit PCM in a minimal WAV container:
// the standard 44-byte header followed by little-endian samples.
const (
	SampleRate     = 16000
	BytesPerSample = 2
	HeaderSize     = 44
)

// Format identifies the container of an encoded audio payload.
type Format string

const (
	FormatWAV  Format = "wav"  // Uncompressed RIFF/WAVE container
	FormatMPEG Format = "mpeg" // Compressed container (MP3 and friends)
)

// MIME returns the media type for a format.
func (f Format) MIME() string {
	if f == FormatWAV {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// DetectFormat sniffs an audio payload's container from its leading bytes.
// A RIFF magic means an uncompressed WAV container; anything else is treated
// as a compressed container.
func DetectFormat(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "RIFF" {
		return FormatWAV
	}
	return FormatMPEG
}

// EncodeWAVPCM16 wraps 16-bit mono samples in a minimal WAV container.
func EncodeWAVPCM16(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * BytesPerSample
	buf := make([]byte, HeaderSize+dataSize)

	byteRate := sampleRate * BytesPerSample

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], BytesPerSample) // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)             // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(s))
	}
	return buf
}

// DecodeWAVPCM16 extracts the samples and sample rate from a minimal WAV
// container produced by EncodeWAVPCM16 (44-byte header, mono PCM16).
func DecodeWAVPCM16(data []byte) ([]int16, int, error) {
	if len(data) < HeaderSize {
		return nil, 0, fmt.Errorf("wav payload too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE payload")
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != 1 {
		return nil, 0, fmt.Errorf("unsupported wav format %d, want PCM", format)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d, want 16", bits)
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if dataSize > len(data)-HeaderSize {
		dataSize = len(data) - HeaderSize
	}

	samples := make([]int16, dataSize/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[HeaderSize+i*2:]))
	}
	return samples, sampleRate, nil
}
