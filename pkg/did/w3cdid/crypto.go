package w3cdid

import (
	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/cryptography"
)

type SignatureValidator func(vm cryptography.VerificationMethod, sig []byte, msg []byte) (bool, error)

var (
	ErrNoValidSignatures = errors.New("no valid signatures")

	validators = map[cryptography.VerificationMethodType]SignatureValidator{
		cryptography.Ed25519VerificationKey2018: cryptography.ValidateEd25519,
		cryptography.Ed25519VerificationKey2020: cryptography.ValidateEd25519,
	}
)

// Signed checks if the signature provided was signed by a key in the
// Document. Verification methods with unsupported types are skipped
func (d *Document) Signed(signature []byte, msg []byte) error {
	if len(d.VerificationMethod) == 0 {
		return errors.New("no verification method specified")
	}

	for _, vm := range d.VerificationMethod {
		validator, ok := validators[vm.Type]
		if !ok {
			continue
		}

		ok, err := validator(vm, signature, msg)
		if err != nil {
			continue
		}

		if ok {
			return nil
		}
	}

	return ErrNoValidSignatures
}
