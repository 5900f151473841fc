package cloud

import (
	"encoding/json"
	"fmt"
)

// Response is the part of an update/accepted or update/rejected document the
// channel cares about.
type Response struct {
	Status      AckStatus
	ClientToken string
	Version     int64
	Code        int
	Message     string
}

type responseDoc struct {
	ClientToken string `json:"clientToken"`
	Version     int64  `json:"version"`
	Code        int    `json:"code"`
	Message     string `json:"message"`
}

// ParseResponse decodes a response received on the topic for status.
func ParseResponse(status AckStatus, payload []byte) (Response, error) {
	var doc responseDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return Response{
		Status:      status,
		ClientToken: doc.ClientToken,
		Version:     doc.Version,
		Code:        doc.Code,
		Message:     doc.Message,
	}, nil
}
