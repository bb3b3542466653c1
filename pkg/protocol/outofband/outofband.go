// Package outofband implements out-of-band invitations: building,
// URL encoding and parsing with expiry detection, and QR rendering
package outofband

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/tcfw/didmsg/pkg/comm"
	"github.com/tcfw/didmsg/pkg/protocol"
)

const (
	Protocol = "out-of-band"
	Version  = "2.0"

	TypeInvitation = "invitation"

	// oobParam is the query parameter carrying the encoded invitation
	oobParam = "oob"
)

var (
	InvitationType = protocol.NewTypeURI(Protocol, Version, TypeInvitation).String()

	ErrNoInvitation = errors.New("no invitation in url")
)

// Invitation is a parsed out-of-band invitation plus its expiry state at
// parse time
type Invitation struct {
	*comm.Envelope

	Expired bool
}

type Option func(*comm.Envelope)

// WithTTL stamps an expiry a duration from now. A non-positive ttl yields
// an invitation that is already expired
func WithTTL(ttl time.Duration) Option {
	return func(msg *comm.Envelope) {
		msg.Body["expires_time"] = time.Now().Add(ttl).Unix()
	}
}

func WithGoal(code, goal string) Option {
	return func(msg *comm.Envelope) {
		msg.Body["goal_code"] = code
		msg.Body["goal"] = goal
	}
}

// New builds an invitation from the given identity
func New(from string, opts ...Option) *comm.Envelope {
	msg := comm.NewEnvelope(InvitationType, map[string]interface{}{
		"accept": []string{comm.MessagingVersion},
	})

	msg.From = from

	for _, opt := range opts {
		opt(msg)
	}

	return msg
}

// URL encodes the full invitation as a base64url query parameter on the
// given base address
func URL(msg *comm.Envelope, base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parsing base url")
	}

	d, err := json.Marshal(msg)
	if err != nil {
		return "", errors.Wrap(err, "marshalling invitation")
	}

	q := u.Query()
	q.Set(oobParam, base64.RawURLEncoding.EncodeToString(d))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Parse decodes an invitation URL, validates the embedded message and
// reports whether the invitation has already expired
func Parse(invitationURL string) (*Invitation, error) {
	u, err := url.Parse(invitationURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing invitation url")
	}

	enc := u.Query().Get(oobParam)
	if enc == "" {
		return nil, errors.Wrap(ErrNoInvitation, invitationURL)
	}

	d, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, errors.Wrap(err, "decoding invitation")
	}

	msg := &comm.Envelope{}
	if err := json.Unmarshal(d, msg); err != nil {
		return nil, errors.Wrap(err, "unmarshalling invitation")
	}

	if err := Validate(msg); err != nil {
		return nil, err
	}

	return &Invitation{Envelope: msg, Expired: expired(msg)}, nil
}

// Validate checks the message is a well-formed invitation from a known
// sender
func Validate(msg *comm.Envelope) error {
	if err := protocol.Validate(msg, Protocol, Version); err != nil {
		return err
	}

	if msg.From == "" {
		return errors.Wrap(protocol.ErrInvalidMessage, "invitation missing from")
	}

	return nil
}

// QR renders an invitation URL as a PNG. The url may be the raw oob form
// or a pre-shortened one
func QR(invitationURL string, size int) ([]byte, error) {
	png, err := qrcode.Encode(invitationURL, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "rendering qr code")
	}

	return png, nil
}

func expired(msg *comm.Envelope) bool {
	raw, ok := msg.Body["expires_time"]
	if !ok {
		return false
	}

	var exp int64
	switch v := raw.(type) {
	case float64:
		exp = int64(v)
	case int64:
		exp = v
	case json.Number:
		exp, _ = v.Int64()
	default:
		return false
	}

	return time.Now().Unix() >= exp
}
