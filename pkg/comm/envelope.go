// Package comm implements the secure messaging wrapper: identity
// generation, envelope preparation and dispatch, and unpacking of received
// envelopes.
package comm

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// ContentType is the wire content type of sealed envelopes
	ContentType = "application/didcomm-encrypted+json"

	// MessagingVersion is the DIDComm version this wrapper speaks
	MessagingVersion = "didcomm/v2"
)

// Envelope is the DIDComm v2 plaintext message before sealing
type Envelope struct {
	Type        string                 `json:"@type"`
	ID          string                 `json:"@id"`
	ThreadID    string                 `json:"thid,omitempty"`
	From        string                 `json:"from,omitempty"`
	To          []string               `json:"to,omitempty"`
	CreatedTime int64                  `json:"created_time,omitempty"`
	Body        map[string]interface{} `json:"body"`
	Attachments []Attachment           `json:"attachments,omitempty"`
}

type Attachment struct {
	ID        string         `json:"id,omitempty"`
	MediaType string         `json:"media_type,omitempty"`
	Data      AttachmentData `json:"data"`
}

type AttachmentData struct {
	Base64 string                 `json:"base64,omitempty"`
	JSON   map[string]interface{} `json:"json,omitempty"`
}

// NewEnvelope builds a plaintext envelope with a fresh id and timestamp.
// The thread id defaults to the envelope's own id, establishing a reply
// chain
func NewEnvelope(typ string, body map[string]interface{}) *Envelope {
	id := uuid.NewString()

	return &Envelope{
		Type:        typ,
		ID:          id,
		ThreadID:    id,
		CreatedTime: time.Now().Unix(),
		Body:        body,
	}
}

// Thread returns the correlation id for the exchange this envelope belongs
// to
func (e *Envelope) Thread() string {
	if e.ThreadID != "" {
		return e.ThreadID
	}

	return e.ID
}

func (e *Envelope) Marshal() ([]byte, error) {
	d, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling envelope")
	}

	return d, nil
}

func UnmarshalEnvelope(d []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(d, env); err != nil {
		return nil, errors.Wrap(err, "unmarshalling envelope")
	}

	return env, nil
}
