package outofband

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/didmsg/pkg/comm"
)

const testDID = "did:peer:4zQmInviter"

func TestNewInvitation(t *testing.T) {
	inv := New(testDID, WithGoal("issue-vc", "credential issuance"))

	require.NoError(t, Validate(inv))

	assert.Equal(t, InvitationType, inv.Type)
	assert.Equal(t, testDID, inv.From)
	assert.Equal(t, "issue-vc", inv.Body["goal_code"])
	assert.Equal(t, []string{comm.MessagingVersion}, inv.Body["accept"])
}

func TestURLRoundTrip(t *testing.T) {
	inv := New(testDID, WithTTL(time.Hour))

	u, err := URL(inv, "https://agent.example.com/invite")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://agent.example.com/invite?oob="))

	parsed, err := Parse(u)
	require.NoError(t, err)

	assert.Equal(t, inv.ID, parsed.ID)
	assert.Equal(t, testDID, parsed.From)
	assert.False(t, parsed.Expired)
}

func TestParseExpired(t *testing.T) {
	inv := New(testDID, WithTTL(-time.Second))

	u, err := URL(inv, "https://agent.example.com/invite")
	require.NoError(t, err)

	parsed, err := Parse(u)
	require.NoError(t, err)
	assert.True(t, parsed.Expired)
}

func TestParseNoTTLNeverExpires(t *testing.T) {
	inv := New(testDID)

	u, err := URL(inv, "https://agent.example.com/invite")
	require.NoError(t, err)

	parsed, err := Parse(u)
	require.NoError(t, err)
	assert.False(t, parsed.Expired)
}

func TestParseMissingParam(t *testing.T) {
	_, err := Parse("https://agent.example.com/invite")
	assert.ErrorIs(t, err, ErrNoInvitation)
}

func TestValidateRejectsForeignType(t *testing.T) {
	msg := comm.NewEnvelope("https://didcomm.org/basicmessage/2.0/message", nil)
	msg.From = testDID

	assert.Error(t, Validate(msg))
}

func TestQR(t *testing.T) {
	inv := New(testDID)

	u, err := URL(inv, "https://agent.example.com/invite")
	require.NoError(t, err)

	png, err := QR(u, 256)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
