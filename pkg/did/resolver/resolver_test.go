package resolver

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/didmsg/pkg/cryptography"
	"github.com/tcfw/didmsg/pkg/did/peer"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

func TestResolvePeer2(t *testing.T) {
	pk, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	did, err := peer.Generate2([]ed25519.PublicKey{pk}, nil, nil)
	require.NoError(t, err)

	doc, err := New().Resolve(w3cdid.URL(did))
	require.NoError(t, err)
	assert.Equal(t, did, doc.ID)
	assert.Len(t, doc.VerificationMethod, 1)
}

func TestResolvePeer4(t *testing.T) {
	pk, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	mb, err := cryptography.EncodeKey(pk, cryptography.KeyKindEd25519Pub)
	require.NoError(t, err)

	long, err := peer.Encode4(&w3cdid.Document{
		Context: []string{w3cdid.Context},
		VerificationMethod: []cryptography.VerificationMethod{
			{ID: "#key-1", Type: cryptography.Ed25519VerificationKey2020, PublicKeyMultibase: mb},
		},
		Authentication: []string{"#key-1"},
	})
	require.NoError(t, err)

	doc, err := New().Resolve(w3cdid.URL(long))
	require.NoError(t, err)
	assert.Equal(t, long, doc.ID)
}

func TestResolveUnknownMethod(t *testing.T) {
	_, err := New().Resolve(w3cdid.URL("did:web:example.com"))
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = New().Resolve(w3cdid.URL("did:peer:0z6Mk"))
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
