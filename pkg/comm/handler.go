package comm

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/didmsg/pkg/cryptography"
	"github.com/tcfw/didmsg/pkg/did"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

var (
	ErrNoService = errors.New("did has no service block")
)

// Resolver dispatches a DID to the codec that can produce its document
type Resolver interface {
	ResolveContext(ctx context.Context, did w3cdid.URL) (*w3cdid.Document, error)
}

// DeliveryMeta describes how a prepared envelope should reach the recipient
type DeliveryMeta struct {
	Endpoint    string
	RoutingKeys []string
	Forwarded   bool
}

// Handler prepares, dispatches and unpacks envelopes. Resolution misses are
// fatal to the single operation; retry is the queue's responsibility
type Handler struct {
	resolver Resolver
	secrets  did.SecretStore
	client   *http.Client
	log      *logrus.Entry
}

type HandlerOption func(*Handler)

func WithHTTPClient(c *http.Client) HandlerOption {
	return func(h *Handler) {
		h.client = c
	}
}

func WithLogger(log *logrus.Entry) HandlerOption {
	return func(h *Handler) {
		h.log = log
	}
}

func NewHandler(resolver Resolver, secrets did.SecretStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		resolver: resolver,
		secrets:  secrets,
		// deliberately no client timeout; callers bound latency with
		// their own context deadline
		client: &http.Client{},
		log:    logrus.NewEntry(logrus.New()),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Resolve dispatches to the method 2 or method 4 codec by prefix
func (h *Handler) Resolve(ctx context.Context, didStr string) (*w3cdid.Document, error) {
	return h.resolver.ResolveContext(ctx, w3cdid.URL(didStr))
}

// ResolveMessagingServices filters the resolved document's services to
// DIDCommMessaging entries accepting the version this wrapper speaks
func (h *Handler) ResolveMessagingServices(ctx context.Context, didStr string) ([]w3cdid.Service, error) {
	doc, err := h.Resolve(ctx, didStr)
	if err != nil {
		return nil, err
	}

	if len(doc.Service) == 0 {
		return nil, errors.Wrap(ErrNoService, didStr)
	}

	var svcs []w3cdid.Service
	for _, svc := range doc.Service {
		if svc.Type != w3cdid.ServiceTypeDIDComm {
			continue
		}

		if len(svc.ServiceEndpoint.Accept) > 0 && !contains(svc.ServiceEndpoint.Accept, MessagingVersion) {
			continue
		}

		svcs = append(svcs, svc)
	}

	return svcs, nil
}

// PrepareEnvelope stamps sender and recipient onto the envelope, seals it
// for the recipient's key agreement key and resolves delivery metadata. A
// recipient whose only endpoint is a queue transport gets a forwarding hint
// instead of a direct endpoint
func (h *Handler) PrepareEnvelope(ctx context.Context, to, from string, msg *Envelope) (*Envelope, []byte, *DeliveryMeta, error) {
	msg.From = from
	msg.To = []string{to}

	recipientDoc, err := h.Resolve(ctx, to)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "resolving recipient")
	}

	kid, key, err := agreementKey(recipientDoc)
	if err != nil {
		return nil, nil, nil, err
	}

	skid, signing, err := h.signingKey(ctx, from)
	if err != nil {
		return nil, nil, nil, err
	}

	plaintext, err := msg.Marshal()
	if err != nil {
		return nil, nil, nil, err
	}

	sealed, err := Pack(plaintext, kid, key, skid, signing)
	if err != nil {
		return nil, nil, nil, err
	}

	meta, err := h.deliveryMeta(ctx, recipientDoc)
	if err != nil {
		return nil, nil, nil, err
	}

	return msg, sealed, meta, nil
}

// SendEnvelope prepares and POSTs the sealed envelope to the recipient's
// resolved endpoint
func (h *Handler) SendEnvelope(ctx context.Context, to, from string, msg *Envelope) error {
	_, err := h.send(ctx, to, from, msg)
	return err
}

// SendAndAwaitReply additionally unpacks the HTTP response body as a new
// inbound envelope
func (h *Handler) SendAndAwaitReply(ctx context.Context, to, from string, msg *Envelope) (*Envelope, *EnvelopeMeta, error) {
	body, err := h.send(ctx, to, from, msg)
	if err != nil {
		return nil, nil, err
	}

	return h.Receive(ctx, body)
}

func (h *Handler) send(ctx context.Context, to, from string, msg *Envelope) ([]byte, error) {
	_, sealed, meta, err := h.PrepareEnvelope(ctx, to, from, msg)
	if err != nil {
		return nil, err
	}

	if meta.Endpoint == "" {
		return nil, errors.Errorf("no deliverable endpoint for %s", to)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, meta.Endpoint, bytes.NewReader(sealed))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", ContentType)

	h.log.WithField("to", to).WithField("endpoint", meta.Endpoint).Debug("dispatching envelope")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "posting envelope")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("delivery failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Receive decrypts a sealed envelope using the stored secret matching the
// embedded recipient key reference, then authenticates the detached
// signature against the sender's resolved document when present
func (h *Handler) Receive(ctx context.Context, data []byte) (*Envelope, *EnvelopeMeta, error) {
	plaintext, sig, meta, err := Unpack(data, h.secrets)
	if err != nil {
		return nil, nil, err
	}

	if meta.SKID != "" && sig != nil {
		senderDID := strings.SplitN(meta.SKID, "#", 2)[0]

		senderDoc, err := h.Resolve(ctx, senderDID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "resolving sender")
		}

		if err := senderDoc.Signed(sig, plaintext); err != nil {
			return nil, nil, errors.Wrap(err, "verifying sender signature")
		}
	}

	env, err := UnmarshalEnvelope(plaintext)
	if err != nil {
		return nil, nil, err
	}

	return env, meta, nil
}

// deliveryMeta resolves a deliverable HTTP endpoint. Queue-transport
// endpoints produce a forwarding hint; a routing DID is chased one hop for
// the mediator's own endpoint
func (h *Handler) deliveryMeta(ctx context.Context, doc *w3cdid.Document) (*DeliveryMeta, error) {
	meta := &DeliveryMeta{}

	for _, svc := range doc.Service {
		if svc.Type != w3cdid.ServiceTypeDIDComm {
			continue
		}

		uri := svc.ServiceEndpoint.URI

		switch {
		case uri == w3cdid.QueueTransport:
			meta.Forwarded = true
			meta.RoutingKeys = svc.ServiceEndpoint.RoutingKeys

		case strings.HasPrefix(uri, "did:"):
			meta.Forwarded = true
			meta.RoutingKeys = append(meta.RoutingKeys, uri)

			mediated, err := h.ResolveMessagingServices(ctx, uri)
			if err != nil {
				return nil, errors.Wrap(err, "resolving mediator endpoint")
			}

			for _, m := range mediated {
				if !strings.HasPrefix(m.ServiceEndpoint.URI, "did:") && m.ServiceEndpoint.URI != w3cdid.QueueTransport {
					meta.Endpoint = m.ServiceEndpoint.URI
					break
				}
			}

		default:
			if meta.Endpoint == "" {
				meta.Endpoint = uri
			}
		}
	}

	return meta, nil
}

func (h *Handler) signingKey(ctx context.Context, from string) (string, ed25519.PrivateKey, error) {
	senderDoc, err := h.Resolve(ctx, from)
	if err != nil {
		return "", nil, errors.Wrap(err, "resolving sender")
	}

	if len(senderDoc.Authentication) == 0 {
		return "", nil, errors.Errorf("%s has no authentication key", from)
	}

	skid := absoluteRef(senderDoc.ID, senderDoc.Authentication[0])

	secret, err := h.secrets.Get(skid)
	if err != nil {
		return "", nil, err
	}

	raw, kind, err := cryptography.DecodeKey(secret.PrivateKeyMultibase)
	if err != nil {
		return "", nil, errors.Wrap(err, "decoding signing secret")
	}

	if kind != cryptography.KeyKindEd25519Prv {
		return "", nil, errors.Errorf("secret %s is not a signing key", skid)
	}

	return skid, ed25519.NewKeyFromSeed(raw), nil
}

// agreementKey picks the recipient's first key agreement key
func agreementKey(doc *w3cdid.Document) (string, cryptography.X25519PublicKey, error) {
	if len(doc.KeyAgreement) == 0 {
		return "", nil, errors.Errorf("%s has no key agreement key", doc.ID)
	}

	ref := doc.KeyAgreement[0]

	vm, ok := doc.VerificationMethodByID(ref)
	if !ok {
		return "", nil, errors.Errorf("%s references unknown key %s", doc.ID, ref)
	}

	raw, kind, err := cryptography.DecodeKey(vm.PublicKeyMultibase)
	if err != nil {
		return "", nil, errors.Wrap(err, "decoding key agreement key")
	}

	if kind != cryptography.KeyKindX25519Pub {
		return "", nil, errors.Errorf("key %s is not an agreement key", ref)
	}

	return absoluteRef(doc.ID, vm.ID), cryptography.X25519PublicKey(raw), nil
}

func absoluteRef(did, ref string) string {
	if strings.HasPrefix(ref, "#") {
		return did + ref
	}

	return ref
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}

	return false
}
