// Package api exposes the agent's inbound HTTP surface: the DIDComm
// delivery endpoint and a health probe.
package api

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tcfw/didmsg/internal/agent"
	"github.com/tcfw/didmsg/pkg/comm"
)

type Api struct {
	a *agent.Agent
	s *http.Server

	log *logrus.Entry
}

func NewAPI(a *agent.Agent, log *logrus.Entry) (*Api, error) {
	api := &Api{a: a, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/didcomm", api.handleDIDComm)
	mux.HandleFunc("/healthz", api.handleHealthz)

	api.s = &http.Server{Handler: mux}

	return api, nil
}

func (a *Api) ListenAndServe(l net.Addr) error {
	lis, err := net.Listen("tcp", l.String())
	if err != nil {
		return err
	}

	return a.s.Serve(lis)
}

func (a *Api) Shutdown(ctx context.Context) error {
	return a.s.Shutdown(ctx)
}

func (a *Api) handleDIDComm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, comm.ContentType) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}

	d, err := ioutil.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := a.a.HandleMessage(r.Context(), d); err != nil {
		a.log.WithError(err).Warn("handling inbound message")
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (a *Api) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
