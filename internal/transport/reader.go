package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
)

// Handlers are the callbacks a telephony read loop drives as inbound
// envelopes arrive. All are optional; a nil handler means "ignore".
type Handlers struct {
	OnAudio     func(pcm []byte)
	OnStopAudio func()
	OnDTMF      func(digit string)
}

// ReadTelephonyLoop blocks reading typed telephony envelopes off conn until
// the connection closes or ctx is cancelled, dispatching to h. Grounded on
// plugins/deepgram/stt.go's ReadMessage loop.
func ReadTelephonyLoop(ctx context.Context, conn *websocket.Conn, h Handlers) error {
	log := slog.With("component", "transport")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("transport: read telephony message: %w", err)
		}

		var env inboundEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn("dropping unparseable telephony envelope", "error", err)
			continue
		}

		switch env.Kind {
		case "AudioData":
			var ad AudioData
			if err := json.Unmarshal(message, &ad); err != nil {
				log.Warn("malformed AudioData envelope", "error", err)
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(ad.AudioData.Data)
			if err != nil {
				log.Warn("malformed AudioData payload", "error", err)
				continue
			}
			if h.OnAudio != nil {
				h.OnAudio(pcm)
			}
		case "StopAudio":
			if h.OnStopAudio != nil {
				h.OnStopAudio()
			}
		case "DtmfData":
			var dd DtmfData
			if err := json.Unmarshal(message, &dd); err != nil {
				log.Warn("malformed DtmfData envelope", "error", err)
				continue
			}
			if h.OnDTMF != nil {
				h.OnDTMF(dd.Dtmf.Digit)
			}
		default:
			log.Debug("ignoring unrecognized telephony envelope kind", "kind", env.Kind)
		}
	}
}
