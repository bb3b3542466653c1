package peer

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/cryptography"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

// segment purpose tags per the did:peer:2 spec
const (
	purposeVerification = 'V'
	purposeEncryption   = 'E'
	purposeService      = 'S'
)

// abbreviated service form embedded in S segments
type abbreviatedService struct {
	Type            string                     `json:"t"`
	ServiceEndpoint abbreviatedServiceEndpoint `json:"s"`
}

type abbreviatedServiceEndpoint struct {
	URI         string   `json:"uri"`
	Accept      []string `json:"a,omitempty"`
	RoutingKeys []string `json:"r,omitempty"`
}

// Generate2 produces a did:peer:2 identifier with one V segment per signing
// key, one E segment per agreement key (input order preserved, order is
// significant for round-trip identity) and one S segment per service
func Generate2(signing []ed25519.PublicKey, agreement []cryptography.X25519PublicKey, services []w3cdid.Service) (string, error) {
	var b strings.Builder
	b.WriteString(Prefix2)

	for i, pk := range signing {
		enc, err := cryptography.EncodeKey(pk, cryptography.KeyKindEd25519Pub)
		if err != nil {
			return "", errors.Wrapf(err, "encoding signing key %d", i)
		}

		b.WriteByte('.')
		b.WriteByte(purposeVerification)
		b.WriteString(enc)
	}

	for i, pk := range agreement {
		enc, err := cryptography.EncodeKey(pk, cryptography.KeyKindX25519Pub)
		if err != nil {
			return "", errors.Wrapf(err, "encoding agreement key %d", i)
		}

		b.WriteByte('.')
		b.WriteByte(purposeEncryption)
		b.WriteString(enc)
	}

	for _, svc := range services {
		enc, err := encodeService(svc)
		if err != nil {
			return "", errors.Wrap(err, "encoding service")
		}

		b.WriteByte('.')
		b.WriteByte(purposeService)
		b.WriteString(enc)
	}

	return b.String(), nil
}

// Resolve2 decodes a did:peer:2 identifier back into a DID document.
// Malformed or unknown-tag segments fail with a decode error rather than
// being skipped
func Resolve2(did string) (*w3cdid.Document, error) {
	if !strings.HasPrefix(did, Prefix2+".") {
		return nil, errors.Wrap(ErrMalformedDID, did)
	}

	doc := &w3cdid.Document{
		Context: []string{w3cdid.Context},
		ID:      did,
	}

	var nKeys, nServices int

	for _, seg := range strings.Split(did[len(Prefix2)+1:], ".") {
		if len(seg) < 2 {
			return nil, errors.Wrapf(ErrMalformedDID, "empty segment in %s", did)
		}

		purpose, body := seg[0], seg[1:]

		switch purpose {
		case purposeVerification, purposeEncryption:
			_, kind, err := cryptography.DecodeKey(body)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding key segment %q", seg)
			}

			if purpose == purposeVerification && kind != cryptography.KeyKindEd25519Pub ||
				purpose == purposeEncryption && kind != cryptography.KeyKindX25519Pub {
				return nil, errors.Wrapf(cryptography.ErrUnknownKeyCodec, "key kind 0x%x not valid for purpose %q", uint64(kind), string(purpose))
			}

			vmType, err := kind.VerificationMethodType()
			if err != nil {
				return nil, errors.Wrapf(err, "key segment %q", seg)
			}

			nKeys++
			id := fmt.Sprintf("%s#key-%d", did, nKeys)

			doc.VerificationMethod = append(doc.VerificationMethod, cryptography.VerificationMethod{
				ID:                 id,
				Type:               vmType,
				Controller:         did,
				PublicKeyMultibase: body,
			})

			if purpose == purposeVerification {
				doc.Authentication = append(doc.Authentication, id)
			} else {
				doc.KeyAgreement = append(doc.KeyAgreement, id)
			}

		case purposeService:
			svc, err := decodeService(body)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding service segment %q", seg)
			}

			if nServices == 0 {
				svc.ID = "#service"
			} else {
				svc.ID = fmt.Sprintf("#service-%d", nServices)
			}
			nServices++

			doc.Service = append(doc.Service, *svc)

		default:
			return nil, errors.Wrapf(ErrMalformedDID, "unknown purpose %q in %s", string(purpose), did)
		}
	}

	return doc, nil
}

func encodeService(svc w3cdid.Service) (string, error) {
	abbr := abbreviatedService{
		Type: abbreviate(svc.Type),
		ServiceEndpoint: abbreviatedServiceEndpoint{
			URI:         svc.ServiceEndpoint.URI,
			Accept:      svc.ServiceEndpoint.Accept,
			RoutingKeys: svc.ServiceEndpoint.RoutingKeys,
		},
	}

	d, err := json.Marshal(abbr)
	if err != nil {
		return "", errors.Wrap(err, "marshalling service")
	}

	return base64.RawURLEncoding.EncodeToString(d), nil
}

func decodeService(enc string) (*w3cdid.Service, error) {
	d, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, errors.Wrap(err, "decoding base64url")
	}

	abbr := &abbreviatedService{}
	if err := json.Unmarshal(d, abbr); err != nil {
		return nil, errors.Wrap(err, "unmarshalling service")
	}

	return &w3cdid.Service{
		Type: expand(abbr.Type),
		ServiceEndpoint: w3cdid.ServiceEndpoint{
			URI:         abbr.ServiceEndpoint.URI,
			Accept:      abbr.ServiceEndpoint.Accept,
			RoutingKeys: abbr.ServiceEndpoint.RoutingKeys,
		},
	}, nil
}

func abbreviate(t string) string {
	if t == w3cdid.ServiceTypeDIDComm {
		return "dm"
	}

	return t
}

func expand(t string) string {
	if t == "dm" {
		return w3cdid.ServiceTypeDIDComm
	}

	return t
}
