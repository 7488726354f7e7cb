package ingest

import (
	"encoding/json"
	"fmt"
)

// EventBinaryStream is the only event that carries media.
const EventBinaryStream = "binarystream"

// Envelope is a text control message.
type Envelope struct {
	Event string `json:"event"`
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("invalid control message: %w", err)
	}
	if env.Event == "" {
		return env, fmt.Errorf("control message has no event")
	}
	return env, nil
}
