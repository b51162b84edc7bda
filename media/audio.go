package media

import (
	"fmt"
	"time"
)

// AudioFormat represents audio format information
type AudioFormat struct {
	SampleRate   int
	Channels     int
	BitsPerSample int
	Format       AudioFormatType
}

type AudioFormatType int

const (
	AudioFormatPCM AudioFormatType = iota
	AudioFormatFloat32
	AudioFormatFloat64
	AudioFormatOgg
	AudioFormatMP3
	AudioFormatWAV
)

// AudioFrame represents a frame of audio data
type AudioFrame struct {
	Data      []byte
	Format    AudioFormat
	Timestamp time.Time
	Duration  time.Duration
	Metadata  map[string]interface{}
}

// NewAudioFrame creates a new audio frame
func NewAudioFrame(data []byte, format AudioFormat) *AudioFrame {
	return &AudioFrame{
		Data:      data,
		Format:    format,
		Timestamp: time.Now(),
		Duration:  calculateDuration(len(data), format),
		Metadata:  make(map[string]interface{}),
	}
}

// Clone creates a deep copy of the audio frame
func (af *AudioFrame) Clone() *AudioFrame {
	data := make([]byte, len(af.Data))
	copy(data, af.Data)
	
	metadata := make(map[string]interface{})
	for k, v := range af.Metadata {
		metadata[k] = v
	}
	
	return &AudioFrame{
		Data:      data,
		Format:    af.Format,
		Timestamp: af.Timestamp,
		Duration:  af.Duration,
		Metadata:  metadata,
	}
}

// SampleCount returns the number of audio samples in the frame
func (af *AudioFrame) SampleCount() int {
	bytesPerSample := af.Format.BitsPerSample / 8
	return len(af.Data) / (bytesPerSample * af.Format.Channels)
}

// IsEmpty returns true if the frame contains no audio data
func (af *AudioFrame) IsEmpty() bool {
	return len(af.Data) == 0
}

// String returns a string representation of the audio frame
func (af *AudioFrame) String() string {
	return fmt.Sprintf("AudioFrame{samples=%d, format=%+v, duration=%v}",
		af.SampleCount(), af.Format, af.Duration)
}

// calculateDuration calculates the duration of audio data
func calculateDuration(dataLen int, format AudioFormat) time.Duration {
	if format.SampleRate == 0 {
		return 0
	}
	
	bytesPerSample := format.BitsPerSample / 8
	samples := dataLen / (bytesPerSample * format.Channels)
	seconds := float64(samples) / float64(format.SampleRate)
	
	return time.Duration(seconds * float64(time.Second))
}

// ResampleAudioFrame resamples a frame's PCM16 mono/stereo data to a new sample
// rate using linear interpolation. Channel count and bit depth are preserved;
// output samples are clamped to the int16 range.
func ResampleAudioFrame(frame *AudioFrame, targetSampleRate int) (*AudioFrame, error) {
	if frame == nil {
		return nil, fmt.Errorf("resample: nil frame")
	}
	if frame.Format.BitsPerSample != 16 {
		return nil, fmt.Errorf("resample: unsupported bit depth %d", frame.Format.BitsPerSample)
	}
	if targetSampleRate <= 0 {
		return nil, fmt.Errorf("resample: invalid target sample rate %d", targetSampleRate)
	}
	if frame.Format.SampleRate == targetSampleRate {
		return frame.Clone(), nil
	}
	channels := frame.Format.Channels
	if channels <= 0 {
		channels = 1
	}

	srcSamples := len(frame.Data) / 2 / channels
	if srcSamples == 0 {
		out := frame.Clone()
		out.Format.SampleRate = targetSampleRate
		return out, nil
	}

	src := make([]int16, srcSamples*channels)
	for i := range src {
		lo := frame.Data[i*2]
		hi := frame.Data[i*2+1]
		src[i] = int16(uint16(lo) | uint16(hi)<<8)
	}

	ratio := float64(targetSampleRate) / float64(frame.Format.SampleRate)
	dstSamples := int(float64(srcSamples) * ratio)
	if dstSamples < 1 {
		dstSamples = 1
	}

	dst := make([]int16, dstSamples*channels)
	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		for c := 0; c < channels; c++ {
			var s0, s1 int16
			i0 := idx*channels + c
			i1 := (idx+1)*channels + c
			if i0 < len(src) {
				s0 = src[i0]
			} else if len(src) >= channels {
				s0 = src[len(src)-channels+c]
			}
			if i1 < len(src) {
				s1 = src[i1]
			} else {
				s1 = s0
			}
			interpolated := float64(s0) + (float64(s1)-float64(s0))*frac
			dst[i*channels+c] = clampInt16(interpolated)
		}
	}

	data := make([]byte, len(dst)*2)
	for i, s := range dst {
		data[i*2] = byte(uint16(s))
		data[i*2+1] = byte(uint16(s) >> 8)
	}

	format := frame.Format
	format.SampleRate = targetSampleRate

	out := NewAudioFrame(data, format)
	out.Metadata = frame.Clone().Metadata
	return out, nil
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Common audio formats
var (
	// Standard 16-bit PCM at 48kHz mono
	AudioFormat48kHz16BitMono = AudioFormat{
		SampleRate:    48000,
		Channels:      1,
		BitsPerSample: 16,
		Format:        AudioFormatPCM,
	}
	
	// Standard 16-bit PCM at 48kHz stereo
	AudioFormat48kHz16BitStereo = AudioFormat{
		SampleRate:    48000,
		Channels:      2,
		BitsPerSample: 16,
		Format:        AudioFormatPCM,
	}
	
	// Standard 16-bit PCM at 16kHz mono (common for speech)
	AudioFormat16kHz16BitMono = AudioFormat{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
		Format:        AudioFormatPCM,
	}
)