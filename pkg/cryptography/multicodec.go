package cryptography

import (
	"encoding/binary"

	"github.com/multiformats/go-multibase"
	"github.com/pkg/errors"
)

// KeyKind identifies the multicodec type of a raw key
type KeyKind uint64

const (
	KeyKindX25519Pub  KeyKind = 0xec
	KeyKindEd25519Pub KeyKind = 0xed
	KeyKindEd25519Prv KeyKind = 0x1300
	KeyKindX25519Prv  KeyKind = 0x1302
)

var (
	ErrUnknownKeyCodec = errors.New("unknown key multicodec")

	kindTypes = map[KeyKind]VerificationMethodType{
		KeyKindEd25519Pub: Ed25519VerificationKey2020,
		KeyKindX25519Pub:  X25519KeyAgreementKey2020,
	}
)

// VerificationMethodType maps a public key kind to its DID document
// verification method type
func (k KeyKind) VerificationMethodType() (VerificationMethodType, error) {
	t, ok := kindTypes[k]
	if !ok {
		return "", errors.Wrapf(ErrUnknownKeyCodec, "0x%x", uint64(k))
	}

	return t, nil
}

// EncodeKey prefixes raw key bytes with the varint multicodec tag for the
// given kind and encodes the result as base58btc multibase
func EncodeKey(raw []byte, kind KeyKind) (string, error) {
	prefix := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(prefix, uint64(kind))

	return multibase.Encode(multibase.Base58BTC, append(prefix[:n], raw...))
}

// DecodeKey reverses EncodeKey, returning the raw key bytes and their kind.
// Unknown multicodec tags are rejected rather than guessed
func DecodeKey(mb string) ([]byte, KeyKind, error) {
	_, d, err := multibase.Decode(mb)
	if err != nil {
		return nil, 0, errors.Wrap(err, "decoding multibase key")
	}

	code, n := binary.Uvarint(d)
	if n <= 0 {
		return nil, 0, errors.Wrap(ErrUnknownKeyCodec, "reading multicodec varint")
	}

	kind := KeyKind(code)
	switch kind {
	case KeyKindEd25519Pub, KeyKindEd25519Prv, KeyKindX25519Pub, KeyKindX25519Prv:
	default:
		return nil, 0, errors.Wrapf(ErrUnknownKeyCodec, "0x%x", code)
	}

	return d[n:], kind, nil
}
