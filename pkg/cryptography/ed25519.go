package cryptography

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

func ValidateEd25519(vm VerificationMethod, sig []byte, msg []byte) (bool, error) {
	pkbytes, err := signingPublicBytes(vm.PublicKeyMultibase)
	if err != nil {
		return false, err
	}

	pk := ed25519.PublicKey(pkbytes)

	return ed25519.Verify(pk, msg, sig), nil
}

// signingPublicBytes accepts multicodec-tagged keys (the form embedded in
// did:peer documents) as well as bare multibase keys
func signingPublicBytes(mb string) ([]byte, error) {
	if raw, kind, err := DecodeKey(mb); err == nil {
		if kind != KeyKindEd25519Pub {
			return nil, ErrInvalidPublicKeyType
		}

		return raw, nil
	}

	raw, err := decodeMultibase(mb)
	if err != nil {
		return nil, errors.Wrap(err, "decoding multibase")
	}

	if len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKeyLength
	}

	return raw, nil
}
