package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/didmsg/internal/agent"
	"github.com/tcfw/didmsg/internal/config"
	"github.com/tcfw/didmsg/internal/utils/logging"
	"github.com/tcfw/didmsg/pkg/comm"
	"github.com/tcfw/didmsg/pkg/did"
	"github.com/tcfw/didmsg/pkg/queue"
)

func newTestAPI(t *testing.T) *Api {
	a, err := agent.New(&config.Config{},
		agent.WithSecretStore(did.NewMemSecretStore()),
		agent.WithQueueStore(queue.NewMemStore()),
	)
	if err != nil {
		t.Fatal(err)
	}

	api, err := NewAPI(a, logging.New(false))
	if err != nil {
		t.Fatal(err)
	}

	return api
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	api.handleHealthz(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDIDCommRejectsWrongMethod(t *testing.T) {
	api := newTestAPI(t)

	r := httptest.NewRequest(http.MethodGet, "/didcomm", nil)
	w := httptest.NewRecorder()

	api.handleDIDComm(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDIDCommRejectsWrongContentType(t *testing.T) {
	api := newTestAPI(t)

	r := httptest.NewRequest(http.MethodPost, "/didcomm", strings.NewReader("{}"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	api.handleDIDComm(w, r)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestDIDCommRejectsGarbage(t *testing.T) {
	api := newTestAPI(t)

	r := httptest.NewRequest(http.MethodPost, "/didcomm", strings.NewReader("not an envelope"))
	r.Header.Set("Content-Type", comm.ContentType)
	w := httptest.NewRecorder()

	api.handleDIDComm(w, r)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
