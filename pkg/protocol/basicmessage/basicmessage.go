// Package basicmessage implements the plain chat message protocol
package basicmessage

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/comm"
	"github.com/tcfw/didmsg/pkg/protocol"
)

const (
	Protocol = "basicmessage"
	Version  = "2.0"

	TypeMessage = "message"
)

// MessageType is the full wire @type of a basic message
var MessageType = protocol.NewTypeURI(Protocol, Version, TypeMessage).String()

// New builds a basic message carrying the given content
func New(from, to, content string) *comm.Envelope {
	msg := comm.NewEnvelope(MessageType, map[string]interface{}{
		"content": content,
	})

	msg.From = from
	msg.To = []string{to}
	msg.Body["locale"] = "en"
	msg.Body["sent_time"] = time.Now().UTC().Format(time.RFC3339)

	return msg
}

// Validate checks the message belongs to this protocol and carries content
func Validate(msg *comm.Envelope) error {
	if err := protocol.Validate(msg, Protocol, Version); err != nil {
		return err
	}

	if _, err := Content(msg); err != nil {
		return err
	}

	return nil
}

// Content extracts the chat text from a basic message
func Content(msg *comm.Envelope) (string, error) {
	c, ok := msg.Body["content"].(string)
	if !ok || c == "" {
		return "", errors.Wrap(protocol.ErrInvalidMessage, "missing content")
	}

	return c, nil
}
