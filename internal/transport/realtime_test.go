package transport

import (
	"context"
	"testing"

	"github.com/matryer/is"

	"github.com/artvoice/turnengine/pkg/job"
)

func TestRealtimeSender_Send_NoLocalParticipant(t *testing.T) {
	is := is.New(t)
	sender := NewRealtimeSender(&job.Room{})

	err := sender.Send(context.Background(), []byte(`{"type":"greeting"}`))
	is.True(err != nil) // no local participant should fail the send
}
