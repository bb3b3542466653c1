package w3cdid

import (
	"strings"

	"github.com/tcfw/didmsg/pkg/cryptography"
)

const (
	Context = "https://www.w3.org/ns/did/v1"

	// ServiceTypeDIDComm marks a service endpoint speaking DIDComm
	ServiceTypeDIDComm = "DIDCommMessaging"

	// QueueTransport advertises store-and-forward delivery via a mediator
	// instead of a directly reachable endpoint
	QueueTransport = "didcomm:transport/queue"
)

type Document struct {
	Context              []string                          `json:"@context,omitempty"`
	ID                   string                            `json:"id"`
	AlsoKnownAs          []string                          `json:"alsoKnownAs,omitempty"`
	Controller           []string                          `json:"controller,omitempty"`
	VerificationMethod   []cryptography.VerificationMethod `json:"verificationMethod,omitempty"`
	Authentication       []string                          `json:"authentication,omitempty"`
	AssertionMethod      []string                          `json:"assertionMethod,omitempty"`
	KeyAgreement         []string                          `json:"keyAgreement,omitempty"`
	CapabilityInvocation []string                          `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []string                          `json:"capabilityDelegation,omitempty"`
	Service              []Service                         `json:"service,omitempty"`
}

type Service struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	ServiceEndpoint ServiceEndpoint `json:"serviceEndpoint"`
}

type ServiceEndpoint struct {
	URI         string   `json:"uri"`
	Accept      []string `json:"accept,omitempty"`
	RoutingKeys []string `json:"routingKeys,omitempty"`
}

// VerificationMethodByID finds the verification method an authentication or
// keyAgreement reference points at. References may be absolute
// (did:...#key-1) or relative (#key-1)
func (d *Document) VerificationMethodByID(ref string) (*cryptography.VerificationMethod, bool) {
	frag := ref
	if i := strings.Index(ref, "#"); i >= 0 {
		frag = ref[i:]
	}

	for i, vm := range d.VerificationMethod {
		if vm.ID == ref {
			return &d.VerificationMethod[i], true
		}

		if j := strings.Index(vm.ID, "#"); j >= 0 && vm.ID[j:] == frag {
			return &d.VerificationMethod[i], true
		}
	}

	return nil, false
}
