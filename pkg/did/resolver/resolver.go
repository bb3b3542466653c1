package resolver

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/did/peer"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

var (
	ErrUnknownMethod = errors.New("unknown did method")
)

// Resolver dispatches identifiers over a closed set of did:peer variants.
// The variant is matched once at this boundary rather than by prefix
// iteration at every call
type Resolver struct{}

func New() *Resolver {
	return &Resolver{}
}

// Resolve resolves a DID via any supported method
func (r *Resolver) Resolve(did w3cdid.URL) (*w3cdid.Document, error) {
	return r.ResolveContext(context.Background(), did)
}

func (r *Resolver) ResolveContext(_ context.Context, did w3cdid.URL) (*w3cdid.Document, error) {
	if did.Method() != "peer" {
		return nil, errors.Wrap(ErrUnknownMethod, string(did))
	}

	base := did.Base()

	switch did.Numalgo() {
	case "2":
		return peer.Resolve2(base)
	case "4":
		return peer.Resolve4(base)
	default:
		return nil, errors.Wrapf(ErrUnknownMethod, "unsupported numalgo for %s", string(did))
	}
}
