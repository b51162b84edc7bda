// Package transport implements the wire-facing side of a session: JSON
// envelope shapes for the telephony and browser client protocols (§6), a
// gorilla/websocket Sender for streamed TTS audio, and DTMF buffering.
// Grounded on plugins/deepgram/stt.go's websocket.Conn usage pattern.
package transport

// Client -> server envelopes (telephony).

type AudioMetadata struct {
	Kind      string `json:"kind"`
	CallID    string `json:"callId"`
	SampleRate int   `json:"sampleRate"`
}

type AudioData struct {
	Kind      string `json:"kind"`
	AudioData struct {
		Data string `json:"data"`
	} `json:"audioData"`
}

type StopAudio struct {
	Kind string `json:"kind"`
}

type DtmfData struct {
	Kind string `json:"kind"`
	Dtmf struct {
		Digit string `json:"digit"`
	} `json:"dtmf"`
}

// ErrorData is a server -> client error envelope.
type ErrorData struct {
	Kind  string `json:"kind"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SessionEnvelope wraps a browser/realtime control-plane message (§6).
type SessionEnvelope struct {
	Type      string      `json:"type"`
	Sender    string      `json:"sender"`
	Payload   interface{} `json:"payload,omitempty"`
	Topic     string      `json:"topic,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	CallID    string      `json:"call_id,omitempty"`
}

// inboundEnvelope is used just to sniff the "kind" discriminator before
// unmarshaling into a concrete telephony type.
type inboundEnvelope struct {
	Kind string `json:"kind"`
}
