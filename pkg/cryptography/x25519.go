package cryptography

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"
)

type X25519PrivateKey []byte

type X25519PublicKey []byte

// GenerateSigningKey creates a fresh Ed25519 signing key pair
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// AgreementPrivateFromSigning deterministically derives the X25519 key
// agreement counterpart of an Ed25519 signing key. The same signing key
// always yields the same agreement key
func AgreementPrivateFromSigning(sk ed25519.PrivateKey) X25519PrivateKey {
	h := sha512.Sum512(sk.Seed())
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	out := make(X25519PrivateKey, curve25519.ScalarSize)
	copy(out, h[:curve25519.ScalarSize])

	return out
}

// AgreementPublicFromSigning converts an Ed25519 public key to its X25519
// Montgomery form
func AgreementPublicFromSigning(pk ed25519.PublicKey) (X25519PublicKey, error) {
	if len(pk) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKeyLength
	}

	p, err := new(edwards25519.Point).SetBytes(pk)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing edwards point")
	}

	return X25519PublicKey(p.BytesMontgomery()), nil
}

func (k X25519PrivateKey) Public() (X25519PublicKey, error) {
	pub, err := curve25519.X25519(k, curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "deriving x25519 public scalar")
	}

	return X25519PublicKey(pub), nil
}

// SharedSecret computes the X25519 Diffie-Hellman secret between a private
// scalar and a peer public key
func SharedSecret(priv X25519PrivateKey, pub X25519PublicKey) ([]byte, error) {
	s, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, errors.Wrap(err, "computing shared secret")
	}

	return s, nil
}
