package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope wraps a cached snapshot body with its fetch provenance, so a
// warm start can restore the age of what it serves.
type Envelope struct {
	FetchedAt  time.Time       `json:"fetchedAt"`
	Generation uint64          `json:"generation"`
	Body       json.RawMessage `json:"body"`
}

func EncodeEnvelope(e Envelope) ([]byte, error) {
	buf, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot envelope: %w", err)
	}
	return buf, nil
}

func DecodeEnvelope(buf []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(buf, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode snapshot envelope: %w", err)
	}
	if len(e.Body) == 0 {
		return Envelope{}, fmt.Errorf("decode snapshot envelope: empty body")
	}
	return e, nil
}
