package presentproof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/didmsg/pkg/comm"
)

const (
	verifierDID = "did:peer:4zQmVerifier"
	proverDID   = "did:peer:4zQmProver"
)

func TestExchangeThreading(t *testing.T) {
	definition := map[string]interface{}{
		"input_descriptors": []interface{}{map[string]interface{}{"id": "name"}},
	}

	request := NewRequest(verifierDID, proverDID, "", definition, "nonce-123")
	require.NoError(t, Validate(request))

	presentation := NewPresentation(proverDID, verifierDID, request.Thread(), map[string]interface{}{"type": "VerifiablePresentation"})
	ack := NewAck(verifierDID, proverDID, presentation.Thread())

	for _, msg := range []*comm.Envelope{presentation, ack} {
		require.NoError(t, Validate(msg))
		assert.Equal(t, request.ID, msg.Thread())
	}
}

func TestRequestExtraction(t *testing.T) {
	definition := map[string]interface{}{"input_descriptors": []interface{}{}}

	request := NewRequest(verifierDID, proverDID, "", definition, "nonce-123")

	gotDef, err := Definition(request)
	require.NoError(t, err)
	assert.Equal(t, definition, gotDef)

	challenge, err := Challenge(request)
	require.NoError(t, err)
	assert.Equal(t, "nonce-123", challenge)
}

func TestExtractionMissing(t *testing.T) {
	ack := NewAck(verifierDID, proverDID, "thread-1")

	_, err := Definition(ack)
	assert.ErrorIs(t, err, ErrNoDefinition)

	_, err = Challenge(ack)
	assert.ErrorIs(t, err, ErrNoChallenge)

	_, err = Presentation(ack)
	assert.ErrorIs(t, err, ErrNoPresentation)
}

func TestPresentationExtraction(t *testing.T) {
	vp := map[string]interface{}{"type": "VerifiablePresentation"}

	msg := NewPresentation(proverDID, verifierDID, "thread-1", vp)

	got, err := Presentation(msg)
	require.NoError(t, err)
	assert.Equal(t, vp, got)
}

func TestAdvance(t *testing.T) {
	s := StateNil

	for _, msgType := range []string{TypePropose, TypeRequest, TypePresentation, TypeAck} {
		var err error
		s, err = Advance(s, msgType)
		require.NoError(t, err, msgType)
	}

	assert.Equal(t, StateDone, s)
	assert.True(t, s.Terminal())
}

func TestAdvanceVerifierInitiated(t *testing.T) {
	s, err := Advance(StateNil, TypeRequest)
	require.NoError(t, err)
	assert.Equal(t, StateRequested, s)
}

func TestAdvanceIllegal(t *testing.T) {
	_, err := Advance(StateNil, TypePresentation)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAdvanceProblemReport(t *testing.T) {
	s, err := Advance(StateRequested, TypeProblemReport)
	require.NoError(t, err)
	assert.True(t, s.Terminal())

	_, err = Advance(StateAborted, TypeProblemReport)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}
