package protocol

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/didmsg/pkg/comm"
)

var (
	ErrNoHandler = errors.New("no handler found")
)

// Metadata carries routing context alongside a message. Zero fields are
// defaulted from the message itself during Route
type Metadata struct {
	From     string
	To       []string
	ThreadID string
}

// HandlerFunc processes one inbound message. Errors propagate to the Route
// caller unmodified
type HandlerFunc func(ctx context.Context, msg *comm.Envelope, meta Metadata) error

// Router dispatches messages to handlers keyed by protocol family and
// message type. Registration is expected at startup; Route may be called
// concurrently
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	log *logrus.Entry
}

func NewRouter(log *logrus.Entry) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		log:      log,
	}
}

// Register binds a handler for one message type of a versioned protocol.
// Registering the same triple twice replaces the earlier handler
func (r *Router) Register(protocol, version, msgType string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[routeKey(protocol, version, msgType)] = h
}

// Route parses the message's @type and invokes the matching handler.
// Handler errors are returned to the caller; a failed message never stops
// the router from serving subsequent ones
func (r *Router) Route(ctx context.Context, msg *comm.Envelope, meta Metadata) error {
	t, err := ParseTypeURI(msg.Type)
	if err != nil {
		return err
	}

	r.mu.RLock()
	h, ok := r.handlers[routeKey(t.Protocol, t.Version, t.Type)]
	r.mu.RUnlock()

	if !ok {
		return errors.Wrapf(ErrNoHandler, "%s/%s %s", t.Protocol, t.Version, t.Type)
	}

	if meta.From == "" {
		meta.From = msg.From
	}
	if len(meta.To) == 0 {
		meta.To = msg.To
	}
	if meta.ThreadID == "" {
		meta.ThreadID = msg.Thread()
	}

	r.log.WithField("type", msg.Type).WithField("thid", meta.ThreadID).Debug("routing message")

	return h(ctx, msg, meta)
}

func routeKey(protocol, version, msgType string) string {
	return protocol + "/" + version + "|" + msgType
}
