package peer

import (
	"encoding/binary"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"

	"github.com/tcfw/didmsg/pkg/cryptography"
	"github.com/tcfw/didmsg/pkg/did/w3cdid"
)

// multicodec tag for JSON, prefixed to the canonical document bytes
const jsonMulticodec = 0x0200

var (
	ErrShortForm = errors.New("short form did has no embedded document")

	longForm4Re  = regexp.MustCompile(`^did:peer:4(z[1-9a-km-zA-HJ-NP-Z]+):(z[1-9a-km-zA-HJ-NP-Z]+)$`)
	shortForm4Re = regexp.MustCompile(`^did:peer:4z[1-9a-km-zA-HJ-NP-Z]+$`)
)

// Encode4 derives the long-form did:peer:4 identifier of a document: the
// multihash of the encoded canonical document, followed by the encoded
// document itself. The same document always yields the same identifier
func Encode4(doc *w3cdid.Document) (string, error) {
	encDoc, err := encodeDocument(doc)
	if err != nil {
		return "", err
	}

	hash, err := hashEncodedDocument(encDoc)
	if err != nil {
		return "", err
	}

	return Prefix4 + hash + ":" + encDoc, nil
}

// EncodeShort4 derives the short-form identifier: the hash commitment alone.
// The document is recoverable only from the long form
func EncodeShort4(doc *w3cdid.Document) (string, error) {
	encDoc, err := encodeDocument(doc)
	if err != nil {
		return "", err
	}

	hash, err := hashEncodedDocument(encDoc)
	if err != nil {
		return "", err
	}

	return Prefix4 + hash, nil
}

// LongToShort truncates a long-form did:peer:4 to its short form. The input
// must match the long-form pattern exactly
func LongToShort(longForm string) (string, error) {
	m := longForm4Re.FindStringSubmatch(longForm)
	if m == nil {
		if shortForm4Re.MatchString(longForm) {
			return "", errors.Wrapf(ErrShortForm, "%s is already short form", longForm)
		}

		return "", errors.Wrapf(ErrMalformedDID, "%s is not a long form did:peer:4", longForm)
	}

	return Prefix4 + m[1], nil
}

// Decode4 extracts the embedded document from a long-form identifier,
// verifying the hash commitment. A mismatch signals tampering or corruption
func Decode4(longForm string) (*w3cdid.Document, error) {
	m := longForm4Re.FindStringSubmatch(longForm)
	if m == nil {
		if shortForm4Re.MatchString(longForm) {
			return nil, errors.Wrap(ErrShortForm, longForm)
		}

		return nil, errors.Wrapf(ErrMalformedDID, "%s is not a long form did:peer:4", longForm)
	}

	hash, encDoc := m[1], m[2]

	recomputed, err := hashEncodedDocument(encDoc)
	if err != nil {
		return nil, err
	}

	if recomputed != hash {
		return nil, errors.Wrapf(ErrHashMismatch, "expected %s, got %s", hash, recomputed)
	}

	return decodeDocument(encDoc)
}

// Resolve4 resolves a long-form identifier to its document. The document id
// is the long form, alsoKnownAs carries the short form and every
// verification method controller is rewritten to the long form since the
// embedded controllers are relative
func Resolve4(longForm string) (*w3cdid.Document, error) {
	doc, err := Decode4(longForm)
	if err != nil {
		return nil, err
	}

	shortForm, err := LongToShort(longForm)
	if err != nil {
		return nil, err
	}

	return contextualise(doc, longForm, shortForm), nil
}

// Resolve4Short is Resolve4 with the identities swapped: the document
// advertises only the compact identifier and alsoKnownAs carries the long
// form
func Resolve4Short(longForm string) (*w3cdid.Document, error) {
	doc, err := Decode4(longForm)
	if err != nil {
		return nil, err
	}

	shortForm, err := LongToShort(longForm)
	if err != nil {
		return nil, err
	}

	return contextualise(doc, shortForm, longForm), nil
}

// Resolve4ShortFromDoc resolves against a caller-supplied document without
// needing the long form. The short form is always recomputed from the
// document; if expectedShort is non-empty and disagrees with the recompute,
// the caller supplied a stale or tampered document
func Resolve4ShortFromDoc(doc *w3cdid.Document, expectedShort string) (*w3cdid.Document, error) {
	encDoc, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	hash, err := hashEncodedDocument(encDoc)
	if err != nil {
		return nil, err
	}

	shortForm := Prefix4 + hash

	if expectedShort != "" && expectedShort != shortForm {
		return nil, errors.Wrapf(ErrHashMismatch, "expected %s, computed %s", expectedShort, shortForm)
	}

	longForm := shortForm + ":" + encDoc

	return contextualise(doc, shortForm, longForm), nil
}

func contextualise(doc *w3cdid.Document, id, alias string) *w3cdid.Document {
	out := *doc
	out.ID = id
	out.AlsoKnownAs = append([]string{alias}, doc.AlsoKnownAs...)

	out.VerificationMethod = make([]cryptography.VerificationMethod, len(doc.VerificationMethod))
	for i, vm := range doc.VerificationMethod {
		vm.Controller = id
		out.VerificationMethod[i] = vm
	}

	return &out
}

// encodeDocument canonicalises the document (sorted keys, no insignificant
// whitespace, empty id dropped) and multibase-encodes it with the JSON
// multicodec tag
func encodeDocument(doc *w3cdid.Document) (string, error) {
	canonical, err := canonicalDocument(doc)
	if err != nil {
		return "", err
	}

	prefix := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(prefix, jsonMulticodec)

	enc, err := multibase.Encode(multibase.Base58BTC, append(prefix[:n], canonical...))
	if err != nil {
		return "", errors.Wrap(err, "encoding document")
	}

	return enc, nil
}

func decodeDocument(enc string) (*w3cdid.Document, error) {
	_, d, err := multibase.Decode(enc)
	if err != nil {
		return nil, errors.Wrap(err, "decoding document segment")
	}

	code, n := binary.Uvarint(d)
	if n <= 0 || code != jsonMulticodec {
		return nil, errors.Wrap(ErrMalformedDID, "document segment missing json multicodec")
	}

	doc := &w3cdid.Document{}
	if err := json.Unmarshal(d[n:], doc); err != nil {
		return nil, errors.Wrap(err, "unmarshalling document")
	}

	return doc, nil
}

func hashEncodedDocument(encDoc string) (string, error) {
	mh, err := multihash.Sum([]byte(encDoc), multihash.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap(err, "hashing document")
	}

	enc, err := multibase.Encode(multibase.Base58BTC, mh)
	if err != nil {
		return "", errors.Wrap(err, "encoding hash")
	}

	return enc, nil
}

// canonicalDocument produces deterministic JSON: object keys sorted, no
// whitespace. Encoding through a generic map lets encoding/json apply its
// sorted key ordering
func canonicalDocument(doc *w3cdid.Document) ([]byte, error) {
	d, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling document")
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(d, &generic); err != nil {
		return nil, errors.Wrap(err, "normalising document")
	}

	// the input document is identifier-less; its id is derived from this
	// encoding
	if id, ok := generic["id"]; ok {
		if s, _ := id.(string); s == "" || strings.HasPrefix(s, Prefix4) {
			delete(generic, "id")
		}
	}
	delete(generic, "alsoKnownAs")

	return json.Marshal(generic)
}
