package protocol

import (
	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/comm"
)

var (
	ErrInvalidMessage = errors.New("invalid protocol message")
)

// Validate checks the message carries an id and a well-formed type within
// the given protocol family
func Validate(msg *comm.Envelope, protocol, version string) error {
	if msg == nil {
		return errors.Wrap(ErrInvalidMessage, "nil message")
	}

	if msg.ID == "" {
		return errors.Wrap(ErrInvalidMessage, "missing @id")
	}

	if msg.Type == "" {
		return errors.Wrap(ErrInvalidMessage, "missing @type")
	}

	t, err := ParseTypeURI(msg.Type)
	if err != nil {
		return err
	}

	if t.Protocol != protocol || t.Version != version {
		return errors.Wrapf(ErrInvalidMessage, "type %s outside %s/%s", msg.Type, protocol, version)
	}

	return nil
}
