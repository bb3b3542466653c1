// Package protocol implements the typed message framework layered over the
// messaging wrapper: type URI parsing and a router dispatching inbound
// messages to registered handlers by protocol, version and message type.
package protocol

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Namespace is the default host under which protocol type URIs are minted
const Namespace = "didcomm.org"

var (
	ErrMalformedType = errors.New("malformed message type")
)

// TypeURI identifies one message type within a versioned protocol, encoded
// on the wire as https://<namespace>/<protocol>/<version>/<type>
type TypeURI struct {
	Protocol string
	Version  string
	Type     string
}

// NewTypeURI mints a type URI under the default namespace
func NewTypeURI(protocol, version, msgType string) TypeURI {
	return TypeURI{Protocol: protocol, Version: version, Type: msgType}
}

func (t TypeURI) String() string {
	return "https://" + Namespace + "/" + t.Protocol + "/" + t.Version + "/" + t.Type
}

// Family is the protocol/version pair shared by all of a protocol's
// message types
func (t TypeURI) Family() string {
	return t.Protocol + "/" + t.Version
}

// ParseTypeURI splits a message @type into its protocol, version and type
// segments. The namespace host is not checked so messages minted under
// foreign namespaces still route
func ParseTypeURI(s string) (TypeURI, error) {
	u, err := url.Parse(s)
	if err != nil {
		return TypeURI{}, errors.Wrap(ErrMalformedType, s)
	}

	if u.Scheme != "https" || u.Host == "" {
		return TypeURI{}, errors.Wrap(ErrMalformedType, s)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TypeURI{}, errors.Wrap(ErrMalformedType, s)
	}

	return TypeURI{Protocol: parts[0], Version: parts[1], Type: parts[2]}, nil
}
