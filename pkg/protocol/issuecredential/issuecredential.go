// Package issuecredential implements the issue-credential v3 exchange:
// message builders, validation, credential extraction and state legality
package issuecredential

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/comm"
	"github.com/tcfw/didmsg/pkg/protocol"
)

const (
	Protocol = "issue-credential"
	Version  = "3.0"

	TypePropose       = "propose-credential"
	TypeOffer         = "offer-credential"
	TypeRequest       = "request-credential"
	TypeIssue         = "issue-credential"
	TypeAck           = "ack"
	TypeProblemReport = "problem-report"

	credentialAttachID = "credential-0"
)

var (
	ErrNoCredential = errors.New("no credential attachment")
)

func typeURI(msgType string) string {
	return protocol.NewTypeURI(Protocol, Version, msgType).String()
}

// NewPropose opens an exchange from the holder side. The proposal carries
// a free-form preview of the credential being asked for
func NewPropose(from, to string, preview map[string]interface{}) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypePropose), map[string]interface{}{
		"credential_preview": preview,
	})

	msg.From = from
	msg.To = []string{to}

	return msg
}

// NewOffer offers a credential, either opening an exchange or replying to
// a proposal when thid is non-empty
func NewOffer(from, to, thid string, preview map[string]interface{}) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypeOffer), map[string]interface{}{
		"credential_preview": preview,
	})

	msg.From = from
	msg.To = []string{to}
	threaded(msg, thid)

	return msg
}

// NewRequest asks the issuer to proceed with issuance on an open thread
func NewRequest(from, to, thid string) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypeRequest), map[string]interface{}{})

	msg.From = from
	msg.To = []string{to}
	threaded(msg, thid)

	return msg
}

// NewIssue carries the issued credential as a JSON attachment
func NewIssue(from, to, thid string, credential map[string]interface{}) *comm.Envelope {
	msg := comm.NewEnvelope(typeURI(TypeIssue), map[string]interface{}{})

	msg.From = from
	msg.To = []string{to}
	threaded(msg, thid)

	msg.Attachments = []comm.Attachment{{
		ID:        credentialAttachID,
		MediaType: "application/json",
		Data:      comm.AttachmentData{JSON: credential},
	}}

	return msg
}

// NewAck closes the exchange from the holder side
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

// Credential extracts the issued credential from an issue-credential
// message's attachments, whether embedded as JSON or base64
func Credential(msg *comm.Envelope) (map[string]interface{}, error) {
	for _, a := range msg.Attachments {
		if a.Data.JSON != nil {
			return a.Data.JSON, nil
		}

		if a.Data.Base64 != "" {
			d, err := base64.RawURLEncoding.DecodeString(a.Data.Base64)
			if err != nil {
				return nil, errors.Wrap(err, "decoding credential attachment")
			}

			cred := map[string]interface{}{}
			if err := json.Unmarshal(d, &cred); err != nil {
				return nil, errors.Wrap(err, "unmarshalling credential attachment")
			}

			return cred, nil
		}
	}

	return nil, errors.Wrap(ErrNoCredential, msg.ID)
}

func threaded(msg *comm.Envelope, thid string) {
	if thid != "" {
		msg.ThreadID = thid
	}
}
