package comm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/didmsg/pkg/did"
	"github.com/tcfw/didmsg/pkg/did/resolver"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

func newTestHandler(t *testing.T) (*Handler, did.SecretStore) {
	t.Helper()

	secrets := did.NewMemSecretStore()

	return NewHandler(resolver.New(), secrets), secrets
}

func storeIdentity(t *testing.T, secrets did.SecretStore, endpoint string) *Identity {
	t.Helper()

	id, err := GenerateIdentity(endpoint)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range id.Secrets {
		if err := secrets.Put(s); err != nil {
			t.Fatal(err)
		}
	}

	return id
}

func TestGenerateIdentity(t *testing.T) {
	id, err := GenerateIdentity("https://agent.example.com/didcomm")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id.DID, "did:peer:4"))
	require.Len(t, id.Secrets, 2)
	assert.Equal(t, id.DID+"#key-1", id.Secrets[0].ID)
	assert.Equal(t, id.DID+"#key-2", id.Secrets[1].ID)

	// secrets must not leak key material through String
	assert.NotContains(t, id.Secrets[0].String(), id.Secrets[0].PrivateKeyMultibase)

	doc, err := resolver.New().Resolve(w3cdid.URL(id.DID))
	require.NoError(t, err)
	assert.NoError(t, doc.IsValid())
	require.Len(t, doc.Service, 1)
	assert.Equal(t, "https://agent.example.com/didcomm", doc.Service[0].ServiceEndpoint.URI)
}

func TestGenerateMediatedIdentity(t *testing.T) {
	id, err := GenerateMediatedIdentity()
	require.NoError(t, err)

	doc, err := resolver.New().Resolve(w3cdid.URL(id.DID))
	require.NoError(t, err)

	require.Len(t, doc.Service, 1)
	assert.Equal(t, w3cdid.QueueTransport, doc.Service[0].ServiceEndpoint.URI)
	assert.NotNil(t, doc.Service[0].ServiceEndpoint.RoutingKeys)
}

func TestResolveMessagingServices(t *testing.T) {
	h, secrets := newTestHandler(t)
	id := storeIdentity(t, secrets, "https://agent.example.com/didcomm")

	svcs, err := h.ResolveMessagingServices(context.Background(), id.DID)
	require.NoError(t, err)
	require.Len(t, svcs, 1)
	assert.Equal(t, w3cdid.ServiceTypeDIDComm, svcs[0].Type)
}

func TestPrepareReceiveRoundTrip(t *testing.T) {
	hA, secretsA := newTestHandler(t)
	sender := storeIdentity(t, secretsA, "https://a.example.com/didcomm")

	hB, secretsB := newTestHandler(t)
	recipient := storeIdentity(t, secretsB, "https://b.example.com/didcomm")

	msg := NewEnvelope("https://didcomm.org/basicmessage/2.0/message", map[string]interface{}{
		"content": "hello",
	})

	plain, sealed, meta, err := hA.PrepareEnvelope(context.Background(), recipient.DID, sender.DID, msg)
	require.NoError(t, err)
	assert.Equal(t, sender.DID, plain.From)
	assert.Equal(t, []string{recipient.DID}, plain.To)
	assert.Equal(t, "https://b.example.com/didcomm", meta.Endpoint)
	assert.False(t, meta.Forwarded)

	received, rmeta, err := hB.Receive(context.Background(), sealed)
	require.NoError(t, err)
	assert.Equal(t, plain.ID, received.ID)
	assert.Equal(t, "hello", received.Body["content"])
	assert.Equal(t, recipient.DID+"#key-2", rmeta.KID)
	assert.Equal(t, sender.DID+"#key-1", rmeta.SKID)
}

func TestReceiveNoMatchingSecret(t *testing.T) {
	hA, secretsA := newTestHandler(t)
	sender := storeIdentity(t, secretsA, "https://a.example.com/didcomm")

	recipient, err := GenerateIdentity("https://b.example.com/didcomm")
	require.NoError(t, err)

	msg := NewEnvelope("https://didcomm.org/basicmessage/2.0/message", nil)

	_, sealed, _, err := hA.PrepareEnvelope(context.Background(), recipient.DID, sender.DID, msg)
	require.NoError(t, err)

	// a handler without the recipient secrets must fail to unpack
	hOther, _ := newTestHandler(t)
	_, _, err = hOther.Receive(context.Background(), sealed)
	assert.ErrorIs(t, err, did.ErrNoSecret)
}

func TestPrepareEnvelopeQueueTransport(t *testing.T) {
	h, secrets := newTestHandler(t)
	sender := storeIdentity(t, secrets, "https://a.example.com/didcomm")

	mediated, err := GenerateMediatedIdentity()
	require.NoError(t, err)

	msg := NewEnvelope("https://didcomm.org/basicmessage/2.0/message", nil)

	_, _, meta, err := h.PrepareEnvelope(context.Background(), mediated.DID, sender.DID, msg)
	require.NoError(t, err)
	assert.True(t, meta.Forwarded)
	assert.Empty(t, meta.Endpoint)
}

func TestSendEnvelope(t *testing.T) {
	var gotContentType string
	var gotBody []byte

	hB, secretsB := newTestHandler(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hA, secretsA := newTestHandler(t)
	sender := storeIdentity(t, secretsA, "https://a.example.com/didcomm")
	recipient := storeIdentity(t, secretsB, srv.URL)

	msg := NewEnvelope("https://didcomm.org/basicmessage/2.0/message", map[string]interface{}{
		"content": "over http",
	})

	err := hA.SendEnvelope(context.Background(), recipient.DID, sender.DID, msg)
	require.NoError(t, err)

	assert.Equal(t, ContentType, gotContentType)

	received, _, err := hB.Receive(context.Background(), gotBody)
	require.NoError(t, err)
	assert.Equal(t, "over http", received.Body["content"])
}

func TestSendEnvelopeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mediator unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h, secrets := newTestHandler(t)
	sender := storeIdentity(t, secrets, "https://a.example.com/didcomm")
	recipient := storeIdentity(t, secrets, srv.URL)

	msg := NewEnvelope("https://didcomm.org/basicmessage/2.0/message", nil)

	err := h.SendEnvelope(context.Background(), recipient.DID, sender.DID, msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mediator unavailable")
}
