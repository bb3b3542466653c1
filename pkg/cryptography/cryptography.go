package cryptography

import "errors"

type VerificationMethodType string

var (
	ErrInvalidPublicKey         = errors.New("invalid public key")
	ErrInvalidPublicKeyLength   = errors.New("invalid public key length")
	ErrInvalidPublicKeyType     = errors.New("invalid public key type")
	ErrUnsupportedPublicKeyType = errors.New("unsupported public key type")
)

const (
	Ed25519VerificationKey2018 VerificationMethodType = "Ed25519VerificationKey2018"
	Ed25519VerificationKey2020 VerificationMethodType = "Ed25519VerificationKey2020"
	JsonWebKey2020             VerificationMethodType = "JsonWebKey2020"
	X25519KeyAgreementKey2019  VerificationMethodType = "X25519KeyAgreementKey2019"
	X25519KeyAgreementKey2020  VerificationMethodType = "X25519KeyAgreementKey2020"
)

type VerificationMethod struct {
	ID                 string                 `json:"id"`
	Type               VerificationMethodType `json:"type"`
	Controller         string                 `json:"controller"`
	PublicKeyJwk       map[string]interface{} `json:"publicKeyJwk,omitempty"`
	PublicKeyMultibase string                 `json:"publicKeyMultibase,omitempty"`
}
