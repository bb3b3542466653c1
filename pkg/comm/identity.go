package comm

import (
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/cryptography"
	"github.com/tcfw/didmsg/pkg/did"
	"github.com/tcfw/didmsg/pkg/did/peer"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

// Identity is a freshly generated did:peer:4 identity and the secrets that
// must be stored before it can be used
type Identity struct {
	DID     string
	Secrets []did.Secret
}

// GenerateIdentity creates a two-key identity: an Ed25519 signing key
// (authentication + capability delegation) and its deterministically derived
// X25519 agreement key, with one DIDCommMessaging service pointing at the
// given endpoint
func GenerateIdentity(serviceEndpoint string) (*Identity, error) {
	return generateIdentity(w3cdid.ServiceEndpoint{
		URI:    serviceEndpoint,
		Accept: []string{MessagingVersion},
	})
}

// GenerateMediatedIdentity creates an identity with no directly reachable
// endpoint, advertising store-and-forward queue delivery instead
func GenerateMediatedIdentity() (*Identity, error) {
	return generateIdentity(w3cdid.ServiceEndpoint{
		URI:         w3cdid.QueueTransport,
		Accept:      []string{MessagingVersion},
		RoutingKeys: []string{},
	})
}

func generateIdentity(endpoint w3cdid.ServiceEndpoint) (*Identity, error) {
	kp, err := did.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, err
	}

	sigMB, err := cryptography.EncodeKey(kp.SigningPublic(), cryptography.KeyKindEd25519Pub)
	if err != nil {
		return nil, errors.Wrap(err, "encoding signing key")
	}

	agrPub, err := kp.AgreementPublic()
	if err != nil {
		return nil, err
	}

	agrMB, err := cryptography.EncodeKey(agrPub, cryptography.KeyKindX25519Pub)
	if err != nil {
		return nil, errors.Wrap(err, "encoding agreement key")
	}

	doc := &w3cdid.Document{
		Context: []string{w3cdid.Context},
		VerificationMethod: []cryptography.VerificationMethod{
			{ID: "#key-1", Type: cryptography.Ed25519VerificationKey2020, Controller: "#id", PublicKeyMultibase: sigMB},
			{ID: "#key-2", Type: cryptography.X25519KeyAgreementKey2020, Controller: "#id", PublicKeyMultibase: agrMB},
		},
		Authentication:       []string{"#key-1"},
		CapabilityDelegation: []string{"#key-1"},
		KeyAgreement:         []string{"#key-2"},
		Service: []w3cdid.Service{
			{ID: "#service-1", Type: w3cdid.ServiceTypeDIDComm, ServiceEndpoint: endpoint},
		},
	}

	longForm, err := peer.Encode4(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encoding identity document")
	}

	sigPrvMB, err := cryptography.EncodeKey(kp.Signing.Seed(), cryptography.KeyKindEd25519Prv)
	if err != nil {
		return nil, errors.Wrap(err, "encoding signing secret")
	}

	agrPrvMB, err := cryptography.EncodeKey(kp.Agreement, cryptography.KeyKindX25519Prv)
	if err != nil {
		return nil, errors.Wrap(err, "encoding agreement secret")
	}

	return &Identity{
		DID: longForm,
		Secrets: []did.Secret{
			{ID: longForm + "#key-1", Type: did.SecretTypeEd25519, PrivateKeyMultibase: sigPrvMB},
			{ID: longForm + "#key-2", Type: did.SecretTypeX25519, PrivateKeyMultibase: agrPrvMB},
		},
	}, nil
}
