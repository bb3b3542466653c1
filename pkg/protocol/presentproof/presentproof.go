// Package presentproof implements the present-proof v3 exchange: message
// builders, validation, definition/challenge extraction and state legality
package presentproof

import (
	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/comm"
	"github.com/tcfw/didmsg/pkg/protocol"
)

const (
	Protocol = "present-proof"
	Version  = "3.0"

	TypePropose       = "propose-presentation"
	TypeRequest       = "request-presentation"
	TypePresentation  = "presentation"
	TypeAck           = "ack"
	TypeProblemReport = "problem-report"

	presentationAttachID = "presentation-0"
)

var (
	ErrNoPresentation = errors.New("no presentation attachment")
	ErrNoDefinition   = errors.New("no presentation definition")
	ErrNoChallenge    = errors.New("no challenge")
)

func typeURI(msgType string) string {
	return protocol.NewTypeURI(Protocol, Version, msgType).String()
}

// NewPropose opens an exchange from the prover side
func NewPropose(from, to string, comment string) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypePropose), map[string]interface{}{
		"comment": comment,
	})

	msg.From = from
	msg.To = []string{to}

	return msg
}

// NewRequest asks the prover for a presentation satisfying the given
// definition, bound to a verifier challenge
func NewRequest(from, to, thid string, definition map[string]interface{}, challenge string) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypeRequest), map[string]interface{}{
		"presentation_definition": definition,
		"challenge":               challenge,
	})

	msg.From = from
	msg.To = []string{to}
	threaded(msg, thid)

	return msg
}

// NewPresentation carries the presentation as a JSON attachment
func NewPresentation(from, to, thid string, presentation map[string]interface{}) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypePresentation), map[string]interface{}{})

	msg.From = from
	msg.To = []string{to}
	threaded(msg, thid)

	msg.Attachments = []comm.Attachment{{
		ID:        presentationAttachID,
		MediaType: "application/json",
		Data:      comm.AttachmentData{JSON: presentation},
	}}

	return msg
}

// NewAck closes the exchange from the verifier side
func NewAck(from, to, thid string) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypeAck), map[string]interface{}{
		"status": "OK",
	})

	msg.From = from
	msg.To = []string{to}
	threaded(msg, thid)

	return msg
}

// NewProblemReport aborts the exchange from any non-terminal state
func NewProblemReport(from, to, thid, code, comment string) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypeProblemReport), map[string]interface{}{
		"code":    code,
		"comment": comment,
	})

	msg.From = from
	msg.To = []string{to}
	threaded(msg, thid)

	return msg
}

// Validate checks the message belongs to this protocol
func Validate(msg *comm.Envelope) error {
	return protocol.Validate(msg, Protocol, Version)
}

// Presentation extracts the presentation from a presentation message's
// attachments
func Presentation(msg *comm.Envelope) (map[string]interface{}, error) {
	for _, a := range msg.Attachments {
		if a.Data.JSON != nil {
			return a.Data.JSON, nil
		}
	}

	return nil, errors.Wrap(ErrNoPresentation, msg.ID)
}

// Definition extracts the presentation definition from a request
func Definition(msg *comm.Envelope) (map[string]interface{}, error) {
	d, ok := msg.Body["presentation_definition"].(map[string]interface{})
	if !ok {
		return nil, errors.Wrap(ErrNoDefinition, msg.ID)
	}

	return d, nil
}

// Challenge extracts the verifier challenge from a request
func Challenge(msg *comm.Envelope) (string, error) {
	c, ok := msg.Body["challenge"].(string)
	if !ok || c == "" {
		return "", errors.Wrap(ErrNoChallenge, msg.ID)
	}

	return c, nil
}

func threaded(msg *comm.Envelope, thid string) {
	if thid != "" {
		msg.ThreadID = thid
	}
}
