// Package peer implements the did:peer method 2 and method 4 codecs:
// deterministic generation of self-certifying identifiers from key material
// and service metadata, and resolution back to DID documents.
package peer

import (
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/cryptography"
)

const (
	// Prefix is the method prefix shared by both numalgos
	Prefix = "did:peer:"

	Prefix2 = Prefix + "2"
	Prefix4 = Prefix + "4"

	shortIdentLen = 8
)

var (
	ErrMalformedDID = errors.New("malformed did")
	ErrHashMismatch = errors.New("document hash mismatch")
)

// DeriveShortIdent derives a truncated deterministic label for a key, used
// as a human-scannable handle. Not cryptographically load bearing
func DeriveShortIdent(raw []byte, kind cryptography.KeyKind) (string, error) {
	enc, err := cryptography.EncodeKey(raw, kind)
	if err != nil {
		return "", err
	}

	mh, err := multihash.Sum([]byte(enc), multihash.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap(err, "hashing encoded key")
	}

	b58 := base58.Encode(mh)
	if len(b58) < shortIdentLen {
		return b58, nil
	}

	return b58[:shortIdentLen], nil
}
