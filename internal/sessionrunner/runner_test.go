package sessionrunner

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/artvoice/turnengine/media"
	"github.com/artvoice/turnengine/services/stt"
	"github.com/artvoice/turnengine/services/vad"
)

type fakeRecognitionStream struct {
	sent []*media.AudioFrame
}

func (s *fakeRecognitionStream) SendAudio(audio *media.AudioFrame) error {
	s.sent = append(s.sent, audio)
	return nil
}
func (s *fakeRecognitionStream) Recv() (*stt.Recognition, error) { return nil, nil }
func (s *fakeRecognitionStream) Close() error                    { return nil }
func (s *fakeRecognitionStream) CloseSend() error                { return nil }

type fakeVAD struct {
	isSpeech bool
	err      error
}

func (v *fakeVAD) Detect(ctx context.Context, audio *media.AudioFrame) (*vad.Detection, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &vad.Detection{IsSpeech: v.isSpeech}, nil
}
func (v *fakeVAD) DetectStream(ctx context.Context, opts *vad.StreamOptions) (vad.DetectionStream, error) {
	return nil, errors.New("not implemented")
}
func (v *fakeVAD) Name() string    { return "fake-vad" }
func (v *fakeVAD) Version() string { return "test" }

func newTestFrame() *media.AudioFrame {
	return media.NewAudioFrame(make([]byte, 320), media.AudioFormat16kHz16BitMono)
}

func TestRunner_WriteAudio_DropsSilenceWhenVADConfident(t *testing.T) {
	is := is.New(t)
	stream := &fakeRecognitionStream{}
	r := &Runner{recogStream: stream, vadSvc: &fakeVAD{isSpeech: false}}

	is.NoErr(r.WriteAudio(newTestFrame()))
	is.Equal(len(stream.sent), 0)
}

func TestRunner_WriteAudio_ForwardsSpeech(t *testing.T) {
	is := is.New(t)
	stream := &fakeRecognitionStream{}
	r := &Runner{recogStream: stream, vadSvc: &fakeVAD{isSpeech: true}}

	is.NoErr(r.WriteAudio(newTestFrame()))
	is.Equal(len(stream.sent), 1)
}

func TestRunner_WriteAudio_FailsOpenOnVADError(t *testing.T) {
	is := is.New(t)
	stream := &fakeRecognitionStream{}
	r := &Runner{recogStream: stream, vadSvc: &fakeVAD{err: errors.New("inference unavailable")}}

	is.NoErr(r.WriteAudio(newTestFrame()))
	is.Equal(len(stream.sent), 1) // VAD error fails open: frame still forwarded
}

func TestRunner_WriteAudio_NoVADForwardsUnconditionally(t *testing.T) {
	is := is.New(t)
	stream := &fakeRecognitionStream{}
	r := &Runner{recogStream: stream}

	is.NoErr(r.WriteAudio(newTestFrame()))
	is.Equal(len(stream.sent), 1)
}

func TestRunner_WriteAudio_NoStreamReturnsError(t *testing.T) {
	is := is.New(t)
	r := &Runner{}
	is.True(r.WriteAudio(newTestFrame()) != nil)
}
