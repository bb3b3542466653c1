package did

import (
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/cryptography"
)

// KeyPair holds an Ed25519 signing key and the X25519 key agreement key
// deterministically derived from it. The agreement key is never generated
// independently so the pairing is reproducible from the same seed
type KeyPair struct {
	Signing   ed25519.PrivateKey
	Agreement cryptography.X25519PrivateKey
}

func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	_, sk, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, errors.Wrap(err, "generating signing key")
	}

	return NewKeyPair(sk), nil
}

func NewKeyPair(sk ed25519.PrivateKey) *KeyPair {
	return &KeyPair{
		Signing:   sk,
		Agreement: cryptography.AgreementPrivateFromSigning(sk),
	}
}

// KeyPairFromSeed rebuilds the same pair from an Ed25519 seed
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("expected %d byte seed, got %d", ed25519.SeedSize, len(seed))
	}

	return NewKeyPair(ed25519.NewKeyFromSeed(seed)), nil
}

func (k *KeyPair) SigningPublic() ed25519.PublicKey {
	return k.Signing.Public().(ed25519.PublicKey)
}

func (k *KeyPair) AgreementPublic() (cryptography.X25519PublicKey, error) {
	return k.Agreement.Public()
}
