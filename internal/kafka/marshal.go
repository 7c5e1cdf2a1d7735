package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
)

func DecodeEnvelope(b []byte) (reservations.Envelope, error) {
	var env reservations.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes the typed payload carried by an envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
