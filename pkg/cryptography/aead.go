package cryptography

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// kdfInfo binds derived content keys to this encryption suite
const kdfInfo = "ECDH-ES+XC20PKW"

// NewEphemeral generates a fresh X25519 scalar for a single ECDH-ES
// exchange
func NewEphemeral() (X25519PrivateKey, X25519PublicKey, error) {
	eprv := make(X25519PrivateKey, curve25519.ScalarSize)
	if _, err := rand.Read(eprv); err != nil {
		return nil, nil, errors.Wrap(err, "generating ephemeral scalar")
	}
	eprv[0] &= 248
	eprv[31] &= 127
	eprv[31] |= 64

	epk, err := eprv.Public()
	if err != nil {
		return nil, nil, err
	}

	return eprv, epk, nil
}

// SealWith encrypts plaintext to a recipient X25519 public key using the
// supplied ephemeral scalar, an HKDF-SHA256 derived content key and
// XChaCha20-Poly1305. Callers that need the ephemeral public key inside the
// aad generate it first via NewEphemeral
func SealWith(eprv X25519PrivateKey, recipient X25519PublicKey, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	epk, err := eprv.Public()
	if err != nil {
		return nil, nil, err
	}

	shared, err := SharedSecret(eprv, recipient)
	if err != nil {
		return nil, nil, err
	}

	aead, err := contentAEAD(shared, epk, recipient)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, errors.Wrap(err, "generating nonce")
	}

	return nonce, aead.Seal(nil, nonce, plaintext, aad), nil
}

// Seal is SealWith over a fresh ephemeral exchange
func Seal(recipient X25519PublicKey, plaintext, aad []byte) (epk X25519PublicKey, nonce, ciphertext []byte, err error) {
	eprv, epk, err := NewEphemeral()
	if err != nil {
		return nil, nil, nil, err
	}

	nonce, ciphertext, err = SealWith(eprv, recipient, plaintext, aad)
	if err != nil {
		return nil, nil, nil, err
	}

	return epk, nonce, ciphertext, nil
}

// Open reverses Seal using the recipient private scalar. A tampered
// ciphertext or mismatched aad fails authentication
func Open(recipient X25519PrivateKey, epk X25519PublicKey, nonce, ciphertext, aad []byte) ([]byte, error) {
	rpub, err := recipient.Public()
	if err != nil {
		return nil, err
	}

	shared, err := SharedSecret(recipient, epk)
	if err != nil {
		return nil, err
	}

	aead, err := contentAEAD(shared, epk, rpub)
	if err != nil {
		return nil, err
	}

	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errors.Wrap(err, "opening sealed payload")
	}

	return pt, nil
}

func contentAEAD(shared []byte, epk X25519PublicKey, recipient X25519PublicKey) (cipher.AEAD, error) {
	salt := append(append([]byte{}, epk...), recipient...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(kdfInfo)), key); err != nil {
		return nil, errors.Wrap(err, "deriving content key")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "initialising aead")
	}

	return aead, nil
}
