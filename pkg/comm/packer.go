package comm

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tcfw/didmsg/pkg/cryptography"
	"github.com/tcfw/didmsg/pkg/did"
)

const (
	algECDHES = "ECDH-ES+HKDF-256"
	encXC20P  = "XC20P"
)

// sealedEnvelope is the authenticated-encrypted wire structure. The
// protected header is the AEAD associated data
type sealedEnvelope struct {
	Protected  string `json:"protected"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	Tag        string `json:"tag"`
	Signature  string `json:"signature,omitempty"`
}

type protectedHeader struct {
	Alg  string       `json:"alg"`
	Enc  string       `json:"enc"`
	Typ  string       `json:"typ"`
	EPK  ephemeralKey `json:"epk"`
	SKID string       `json:"skid,omitempty"`
	KID  string       `json:"kid"`
}

type ephemeralKey struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
}

// EnvelopeMeta is routing detail recovered from a sealed envelope without
// touching the plaintext
type EnvelopeMeta struct {
	KID  string
	SKID string
}

// Pack seals a plaintext envelope for the recipient key agreement key. When
// a sender signing key is supplied, a detached signature over the plaintext
// accompanies the ciphertext so the recipient can authenticate the sender
// against their resolved document
func Pack(plaintext []byte, recipientKID string, recipientKey cryptography.X25519PublicKey, senderKID string, senderSigning ed25519.PrivateKey) ([]byte, error) {
	eprv, epk, err := cryptography.NewEphemeral()
	if err != nil {
		return nil, err
	}

	hdr := protectedHeader{
		Alg: algECDHES,
		Enc: encXC20P,
		Typ: ContentType,
		EPK: ephemeralKey{
			Kty: "OKP",
			Crv: "X25519",
			X:   base64.RawURLEncoding.EncodeToString(epk),
		},
		SKID: senderKID,
		KID:  recipientKID,
	}

	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling protected header")
	}

	protected := base64.RawURLEncoding.EncodeToString(hdrJSON)

	nonce, sealed, err := cryptography.SealWith(eprv, recipientKey, plaintext, []byte(protected))
	if err != nil {
		return nil, errors.Wrap(err, "sealing envelope")
	}

	tagAt := len(sealed) - chacha20poly1305.Overhead

	env := sealedEnvelope{
		Protected:  protected,
		IV:         base64.RawURLEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawURLEncoding.EncodeToString(sealed[:tagAt]),
		Tag:        base64.RawURLEncoding.EncodeToString(sealed[tagAt:]),
	}

	if senderSigning != nil {
		env.Signature = base64.RawURLEncoding.EncodeToString(ed25519.Sign(senderSigning, plaintext))
	}

	d, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling sealed envelope")
	}

	return d, nil
}

// Unpack opens a sealed envelope using the stored secret matching the
// recipient key reference embedded in the protected header. The detached
// signature, if any, is returned for the caller to verify against the
// sender's resolved document
func Unpack(data []byte, secrets did.SecretStore) ([]byte, []byte, *EnvelopeMeta, error) {
	env := &sealedEnvelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, nil, nil, errors.Wrap(err, "unmarshalling sealed envelope")
	}

	hdrJSON, err := base64.RawURLEncoding.DecodeString(env.Protected)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decoding protected header")
	}

	hdr := &protectedHeader{}
	if err := json.Unmarshal(hdrJSON, hdr); err != nil {
		return nil, nil, nil, errors.Wrap(err, "unmarshalling protected header")
	}

	secret, err := secrets.Get(hdr.KID)
	if err != nil {
		return nil, nil, nil, err
	}

	raw, kind, err := cryptography.DecodeKey(secret.PrivateKeyMultibase)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decoding recipient secret")
	}

	if kind != cryptography.KeyKindX25519Prv {
		return nil, nil, nil, errors.Errorf("secret %s is not a key agreement key", hdr.KID)
	}

	epk, err := base64.RawURLEncoding.DecodeString(hdr.EPK.X)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decoding ephemeral key")
	}

	nonce, err := base64.RawURLEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decoding iv")
	}

	ct, err := base64.RawURLEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decoding ciphertext")
	}

	tag, err := base64.RawURLEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decoding tag")
	}

	plaintext, err := cryptography.Open(
		cryptography.X25519PrivateKey(raw),
		cryptography.X25519PublicKey(epk),
		nonce,
		append(ct, tag...),
		[]byte(env.Protected),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	var sig []byte
	if env.Signature != "" {
		sig, err = base64.RawURLEncoding.DecodeString(env.Signature)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "decoding signature")
		}
	}

	return plaintext, sig, &EnvelopeMeta{KID: hdr.KID, SKID: hdr.SKID}, nil
}
