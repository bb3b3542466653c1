package w3cdid

import "github.com/pkg/errors"

// IsValid checks the document's internal references: every id listed under
// authentication, keyAgreement, assertionMethod or capabilityDelegation must
// resolve to an entry in verificationMethod
func (d *Document) IsValid() error {
	if d.ID == "" {
		return errors.New("document missing id")
	}

	refs := map[string][]string{
		"authentication":       d.Authentication,
		"keyAgreement":         d.KeyAgreement,
		"assertionMethod":      d.AssertionMethod,
		"capabilityDelegation": d.CapabilityDelegation,
	}

	for rel, ids := range refs {
		for _, id := range ids {
			if _, ok := d.VerificationMethodByID(id); !ok {
				return errors.Errorf("%s references unknown verification method %s", rel, id)
			}
		}
	}

	return nil
}
