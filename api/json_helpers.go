package api

import (
	"encoding/json"

	"coordinator-core/core/mesh"
)

func decodeEnvelopeBody(env mesh.Envelope, v any) error {
	return json.Unmarshal(env.Body, v)
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
