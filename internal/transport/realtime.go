package transport

import (
	"context"
	"fmt"

	"github.com/artvoice/turnengine/pkg/job"
	lksdk "github.com/livekit/server-sdk-go"
)

// RealtimeSender adapts a pkg/job.Room's LiveKit data channel to
// playback.Sender, used when a session's transport_kind is "realtime"
// (§3). Grounded on agents/worker.go's PublishData usage in the teacher
// module, generalized from a one-off response publish to the
// playback.Sender interface C3 streams every framed envelope through.
type RealtimeSender struct {
	room *job.Room
}

func NewRealtimeSender(room *job.Room) *RealtimeSender {
	return &RealtimeSender{room: room}
}

// Send publishes one pre-built JSON envelope as reliable LiveKit data, the
// same channel the session envelopes (§6) travel over for browser/realtime
// listeners.
func (s *RealtimeSender) Send(ctx context.Context, data []byte) error {
	local := s.room.LocalParticipant()
	if local == nil {
		return fmt.Errorf("transport: realtime sender has no local participant")
	}
	return local.PublishData(data, lksdk.WithDataPublishReliable(true))
}
