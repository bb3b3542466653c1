// Package agent composes the messaging stack: identity and secret
// management, envelope handling, the durable queue and the protocol router,
// behind a single lifecycle.
package agent

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/didmsg/internal/config"
	intdid "github.com/tcfw/didmsg/internal/did"
	"github.com/tcfw/didmsg/internal/utils/logging"
	"github.com/tcfw/didmsg/pkg/comm"
	"github.com/tcfw/didmsg/pkg/did"
	"github.com/tcfw/didmsg/pkg/did/resolver"
	"github.com/tcfw/didmsg/pkg/protocol"
	"github.com/tcfw/didmsg/pkg/protocol/basicmessage"
	"github.com/tcfw/didmsg/pkg/protocol/issuecredential"
	"github.com/tcfw/didmsg/pkg/protocol/outofband"
	"github.com/tcfw/didmsg/pkg/protocol/presentproof"
	"github.com/tcfw/didmsg/pkg/queue"
)

var (
	ErrNoIdentity = errors.New("agent has no identity")
)

// Agent owns the stores and background workers for one messaging identity
type Agent struct {
	identity string

	secrets  did.SecretStore
	resolver *resolver.Resolver
	comm     *comm.Handler
	queue    *queue.Queue
	runner   *queue.Runner
	router   *protocol.Router

	log *logrus.Entry
}

type Option func(*Agent)

// WithIdentity pins the agent to an existing identity whose secrets are
// already in the store
func WithIdentity(didStr string) Option {
	return func(a *Agent) {
		a.identity = didStr
	}
}

func WithSecretStore(s did.SecretStore) Option {
	return func(a *Agent) {
		a.secrets = s
	}
}

func WithQueueStore(s queue.Store) Option {
	return func(a *Agent) {
		a.queue = queue.NewQueue(s)
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(a *Agent) {
		a.log = log
	}
}

// New builds an agent from config, wiring the file secret store and pebble
// queue store unless overridden
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	a := &Agent{
		log: logging.New(cfg.Verbose),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.secrets == nil {
		fs, err := intdid.NewFileStore(cfg.SecretsPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening secret store")
		}
		a.secrets = fs
	}

	if a.queue == nil {
		ps, err := queue.NewPebbleStore(cfg.StoragePath)
		if err != nil {
			return nil, errors.Wrap(err, "opening queue store")
		}
		a.queue = queue.NewQueue(ps)
	}

	a.resolver = resolver.New()
	a.comm = comm.NewHandler(a.resolver, a.secrets, comm.WithLogger(logging.Component(a.log, "comm")))
	a.router = protocol.NewRouter(logging.Component(a.log, "router"))
	a.runner = queue.NewRunner(a.queue, a.dispatch, queue.WithRunnerLogger(logging.Component(a.log, "queue")))

	a.registerHandlers()

	return a, nil
}

// Start launches the queue's retry and cleanup loops
func (a *Agent) Start(ctx context.Context) error {
	a.runner.Start(ctx)

	a.log.WithField("identity", a.identity).Info("agent started")

	return nil
}

// Stop halts background workers and closes the stores
func (a *Agent) Stop() error {
	a.runner.Stop()

	if err := a.secrets.Close(); err != nil {
		return errors.Wrap(err, "closing secret store")
	}

	return nil
}

// Identity returns the agent's own DID
func (a *Agent) Identity() string {
	return a.identity
}

// NewIdentity generates a fresh identity, stores its secrets and adopts it
// as the agent's own. An empty endpoint produces a mediated identity that
// advertises queue delivery
func (a *Agent) NewIdentity(endpoint string) (string, error) {
	var (
		id  *comm.Identity
		err error
	)

	if endpoint == "" {
		id, err = comm.GenerateMediatedIdentity()
	} else {
		id, err = comm.GenerateIdentity(endpoint)
	}
	if err != nil {
		return "", errors.Wrap(err, "generating identity")
	}

	for _, s := range id.Secrets {
		if err := a.secrets.Put(s); err != nil {
			return "", errors.Wrap(err, "storing secret")
		}
	}

	a.identity = id.DID

	return id.DID, nil
}

// SendBasicMessage queues a chat message for delivery
func (a *Agent) SendBasicMessage(ctx context.Context, to, content string) (string, error) {
	return a.enqueue(ctx, to, basicmessage.New(a.identity, to, content))
}

// SendCredentialOffer opens an issue-credential exchange with an offer
func (a *Agent) SendCredentialOffer(ctx context.Context, to string, preview map[string]interface{}) (string, error) {
	return a.enqueue(ctx, to, issuecredential.NewOffer(a.identity, to, "", preview))
}

// IssueCredential sends the credential itself on an open exchange thread
func (a *Agent) IssueCredential(ctx context.Context, to, thid string, credential map[string]interface{}) (string, error) {
	return a.enqueue(ctx, to, issuecredential.NewIssue(a.identity, to, thid, credential))
}

// RequestPresentation opens a present-proof exchange
func (a *Agent) RequestPresentation(ctx context.Context, to string, definition map[string]interface{}, challenge string) (string, error) {
	return a.enqueue(ctx, to, presentproof.NewRequest(a.identity, to, "", definition, challenge))
}

// CreateInvitation builds an out-of-band invitation from the agent's
// identity
func (a *Agent) CreateInvitation(opts ...outofband.Option) (*comm.Envelope, error) {
	if a.identity == "" {
		return nil, ErrNoIdentity
	}

	return outofband.New(a.identity, opts...), nil
}

// InvitationURL encodes an invitation onto a base address
func (a *Agent) InvitationURL(inv *comm.Envelope, base string) (string, error) {
	return outofband.URL(inv, base)
}

// InvitationQR renders an invitation URL as a PNG
func (a *Agent) InvitationQR(invitationURL string, size int) ([]byte, error) {
	return outofband.QR(invitationURL, size)
}

// HandleMessage processes an inbound encrypted envelope: unseal and verify,
// record in the queue for dedupe and audit, then route to the registered
// protocol handler
func (a *Agent) HandleMessage(ctx context.Context, encrypted []byte) error {
	msg, meta, err := a.comm.Receive(ctx, encrypted)
	if err != nil {
		return errors.Wrap(err, "receiving envelope")
	}

	from := didOfRef(meta.SKID)

	payload, err := msg.Marshal()
	if err != nil {
		return err
	}

	id, err := a.queue.EnqueueInbound(ctx, payload, from, msg.ID, map[string]string{"thid": msg.Thread()})
	if err != nil {
		if errors.Is(err, queue.ErrDuplicate) {
			a.log.WithField("id", msg.ID).Debug("dropping duplicate inbound message")
			return nil
		}

		return errors.Wrap(err, "recording inbound message")
	}

	if err := a.router.Route(ctx, msg, protocol.Metadata{From: from}); err != nil {
		if ferr := a.queue.MarkAsFailed(ctx, id, err.Error()); ferr != nil {
			a.log.WithField("id", id).WithError(ferr).Error("recording route failure")
		}

		return err
	}

	return a.queue.MarkAsDelivered(ctx, id)
}

// Router exposes handler registration for embedding applications
func (a *Agent) Router() *protocol.Router {
	return a.router
}

// QueueStats reports per-status record counts
func (a *Agent) QueueStats(ctx context.Context) (map[queue.Status]int, error) {
	return a.queue.Stats(ctx)
}

func (a *Agent) enqueue(ctx context.Context, to string, msg *comm.Envelope) (string, error) {
	if a.identity == "" {
		return "", ErrNoIdentity
	}

	payload, err := msg.Marshal()
	if err != nil {
		return "", err
	}

	id, err := a.queue.EnqueueOutbound(ctx, payload, to, queue.EnqueueOptions{
		Metadata: map[string]string{"thid": msg.Thread()},
	})
	if err != nil {
		return "", errors.Wrap(err, "queueing message")
	}

	return id, nil
}

// dispatch delivers one claimed outbound record over the wire
func (a *Agent) dispatch(ctx context.Context, m *queue.Message) error {
	msg, err := comm.UnmarshalEnvelope(m.Payload)
	if err != nil {
		return err
	}

	return a.comm.SendEnvelope(ctx, m.Peer, a.identity, msg)
}

func (a *Agent) registerHandlers() {
	a.router.Register(basicmessage.Protocol, basicmessage.Version, basicmessage.TypeMessage, a.handleBasicMessage)

	for _, msgType := range []string{
		issuecredential.TypePropose,
		issuecredential.TypeOffer,
		issuecredential.TypeRequest,
		issuecredential.TypeIssue,
		issuecredential.TypeAck,
		issuecredential.TypeProblemReport,
	} {
		a.router.Register(issuecredential.Protocol, issuecredential.Version, msgType, a.handleIssueCredential)
	}

	for _, msgType := range []string{
		presentproof.TypePropose,
		presentproof.TypeRequest,
		presentproof.TypePresentation,
		presentproof.TypeAck,
		presentproof.TypeProblemReport,
	} {
		a.router.Register(presentproof.Protocol, presentproof.Version, msgType, a.handlePresentProof)
	}
}

func (a *Agent) handleBasicMessage(_ context.Context, msg *comm.Envelope, meta protocol.Metadata) error {
	content, err := basicmessage.Content(msg)
	if err != nil {
		return err
	}

	a.log.WithField("from", meta.From).Info("basic message: ", content)

	return nil
}

func (a *Agent) handleIssueCredential(ctx context.Context, msg *comm.Envelope, meta protocol.Metadata) error {
	if err := issuecredential.Validate(msg); err != nil {
		return err
	}

	t, err := protocol.ParseTypeURI(msg.Type)
	if err != nil {
		return err
	}

	a.log.WithField("from", meta.From).WithField("thid", meta.ThreadID).Info("issue-credential ", t.Type)

	switch t.Type {
	case issuecredential.TypeOffer:
		// accept any offer by requesting issuance
		_, err := a.enqueue(ctx, meta.From, issuecredential.NewRequest(a.identity, meta.From, meta.ThreadID))
		return err
	case issuecredential.TypeIssue:
		if _, err := issuecredential.Credential(msg); err != nil {
			return err
		}

		_, err := a.enqueue(ctx, meta.From, issuecredential.NewAck(a.identity, meta.From, meta.ThreadID))
		return err
	}

	return nil
}

func (a *Agent) handlePresentProof(ctx context.Context, msg *comm.Envelope, meta protocol.Metadata) error {
	if err := presentproof.Validate(msg); err != nil {
		return err
	}

	t, err := protocol.ParseTypeURI(msg.Type)
	if err != nil {
		return err
	}

	a.log.WithField("from", meta.From).WithField("thid", meta.ThreadID).Info("present-proof ", t.Type)

	if t.Type == presentproof.TypePresentation {
		if _, err := presentproof.Presentation(msg); err != nil {
			return err
		}

		_, err := a.enqueue(ctx, meta.From, presentproof.NewAck(a.identity, meta.From, meta.ThreadID))
		return err
	}

	return nil
}

func didOfRef(kid string) string {
	if i := strings.Index(kid, "#"); i > 0 {
		return kid[:i]
	}

	return kid
}
