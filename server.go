package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// NewOpsRouter serves the health check and the metrics of the bot. ready
// reports whether the Discord gateway is connected.
func NewOpsRouter(gatherer prometheus.Gatherer, ready func() bool) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !ready() {
			http.Error(w, "NOT READY", http.StatusServiceUnavailable)
			return
		}
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			log.WithError(err).Debug("Failed to write health response")
		}
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// OpsServer runs the ops router until Shutdown is called.
type OpsServer struct {
	server *http.Server
}

func NewOpsServer(addr string, handler http.Handler) *OpsServer {
	return &OpsServer{server: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func (o *OpsServer) Start() {
	go func() {
		log.WithField("addr", o.server.Addr).Info("Ops server listening")
		if err := o.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Ops server stopped")
		}
	}()
}

func (o *OpsServer) Shutdown(ctx context.Context) error {
	return o.server.Shutdown(ctx)
}
