package peer

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/didmsg/pkg/cryptography"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

func testDocument(t *testing.T) *w3cdid.Document {
	t.Helper()

	sig, agr := newTestKeys(t)

	sigMB, err := cryptography.EncodeKey(sig, cryptography.KeyKindEd25519Pub)
	if err != nil {
		t.Fatal(err)
	}

	agrMB, err := cryptography.EncodeKey(agr, cryptography.KeyKindX25519Pub)
	if err != nil {
		t.Fatal(err)
	}

	return &w3cdid.Document{
		Context: []string{w3cdid.Context},
		VerificationMethod: []cryptography.VerificationMethod{
			{ID: "#key-1", Type: cryptography.Ed25519VerificationKey2020, Controller: "#id", PublicKeyMultibase: sigMB},
			{ID: "#key-2", Type: cryptography.X25519KeyAgreementKey2020, Controller: "#id", PublicKeyMultibase: agrMB},
		},
		Authentication: []string{"#key-1"},
		KeyAgreement:   []string{"#key-2"},
		Service:        []w3cdid.Service{testService()},
	}
}

func TestEncode4Deterministic(t *testing.T) {
	doc := testDocument(t)

	long1, err := Encode4(doc)
	require.NoError(t, err)

	long2, err := Encode4(doc)
	require.NoError(t, err)

	assert.Equal(t, long1, long2)
	assert.True(t, strings.HasPrefix(long1, Prefix4+"z"))

	// one field difference must change the identifier
	other := testDocument(t)
	long3, err := Encode4(other)
	require.NoError(t, err)
	assert.NotEqual(t, long1, long3)
}

func TestDecode4RoundTrip(t *testing.T) {
	doc := testDocument(t)

	long, err := Encode4(doc)
	require.NoError(t, err)

	decoded, err := Decode4(long)
	require.NoError(t, err)

	assert.Equal(t, doc.VerificationMethod, decoded.VerificationMethod)
	assert.Equal(t, doc.Authentication, decoded.Authentication)
	assert.Equal(t, doc.KeyAgreement, decoded.KeyAgreement)
}

func TestLongToShortConsistency(t *testing.T) {
	doc := testDocument(t)

	long, err := Encode4(doc)
	require.NoError(t, err)

	short, err := EncodeShort4(doc)
	require.NoError(t, err)

	fromLong, err := LongToShort(long)
	require.NoError(t, err)

	assert.Equal(t, short, fromLong)
}

func TestLongToShortRejectsShortForm(t *testing.T) {
	doc := testDocument(t)

	short, err := EncodeShort4(doc)
	require.NoError(t, err)

	_, err = LongToShort(short)
	assert.ErrorIs(t, err, ErrShortForm)

	_, err = LongToShort("did:peer:2.Vz6Mk")
	assert.ErrorIs(t, err, ErrMalformedDID)
}

func TestDecode4HashMismatch(t *testing.T) {
	doc := testDocument(t)

	long, err := Encode4(doc)
	require.NoError(t, err)

	// corrupt one character inside the hash segment
	i := len(Prefix4) + 5
	corrupt := []byte(long)
	if corrupt[i] == 'a' {
		corrupt[i] = 'b'
	} else {
		corrupt[i] = 'a'
	}

	_, err = Decode4(string(corrupt))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestDecode4ShortForm(t *testing.T) {
	doc := testDocument(t)

	short, err := EncodeShort4(doc)
	require.NoError(t, err)

	_, err = Decode4(short)
	assert.ErrorIs(t, err, ErrShortForm)
}

func TestResolve4(t *testing.T) {
	doc := testDocument(t)

	long, err := Encode4(doc)
	require.NoError(t, err)

	short, err := LongToShort(long)
	require.NoError(t, err)

	resolved, err := Resolve4(long)
	require.NoError(t, err)

	assert.Equal(t, long, resolved.ID)
	assert.Contains(t, resolved.AlsoKnownAs, short)

	require.Len(t, resolved.VerificationMethod, 2)
	for _, vm := range resolved.VerificationMethod {
		assert.Equal(t, long, vm.Controller)
	}
}

func TestResolve4Short(t *testing.T) {
	doc := testDocument(t)

	long, err := Encode4(doc)
	require.NoError(t, err)

	short, err := LongToShort(long)
	require.NoError(t, err)

	resolved, err := Resolve4Short(long)
	require.NoError(t, err)

	assert.Equal(t, short, resolved.ID)
	assert.Contains(t, resolved.AlsoKnownAs, long)

	for _, vm := range resolved.VerificationMethod {
		assert.Equal(t, short, vm.Controller)
	}
}

func TestResolve4ShortFromDoc(t *testing.T) {
	doc := testDocument(t)

	short, err := EncodeShort4(doc)
	require.NoError(t, err)

	resolved, err := Resolve4ShortFromDoc(doc, short)
	require.NoError(t, err)
	assert.Equal(t, short, resolved.ID)

	// no expected id still resolves, recomputing the commitment
	resolved, err = Resolve4ShortFromDoc(doc, "")
	require.NoError(t, err)
	assert.Equal(t, short, resolved.ID)

	// a mismatching expected id is a caller bug or tampering
	_, err = Resolve4ShortFromDoc(doc, "did:peer:4zQmWrong")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestResolve4SignedDocument(t *testing.T) {
	sig, sk, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	sigMB, err := cryptography.EncodeKey(sig, cryptography.KeyKindEd25519Pub)
	require.NoError(t, err)

	doc := &w3cdid.Document{
		Context: []string{w3cdid.Context},
		VerificationMethod: []cryptography.VerificationMethod{
			{ID: "#key-1", Type: cryptography.Ed25519VerificationKey2020, PublicKeyMultibase: sigMB},
		},
		Authentication: []string{"#key-1"},
	}

	long, err := Encode4(doc)
	require.NoError(t, err)

	resolved, err := Resolve4(long)
	require.NoError(t, err)

	msg := []byte("payload")
	assert.NoError(t, resolved.Signed(ed25519.Sign(sk, msg), msg))
}
