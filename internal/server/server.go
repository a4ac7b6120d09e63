// Package server is the webhook intake. It answers the alerting service
// within its delivery deadline by validating, enqueueing and returning 202;
// all real work happens in the pipeline workers.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idpmon/internal/logger"
	"idpmon/internal/metrics"
	"idpmon/pkg/models"
)

// NotificationQueue accepts notifications for background processing.
type NotificationQueue interface {
	Enqueue(ctx context.Context, notification models.ChangeNotification) error
}

// Server handles webhook intake requests.
type Server struct {
	queue     NotificationQueue
	secretKey string
}

// New creates an intake server. An empty secret key disables the shared
// secret check.
func New(queue NotificationQueue, secretKey string) *Server {
	return &Server{queue: queue, secretKey: secretKey}
}

// Routes returns the HTTP mux: the notification endpoint plus metrics and
// liveness.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/notifications", s.handleNotifications)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	// Endpoint validation handshake: the alerting service expects the token
	// echoed back as plain text.
	if token := r.URL.Query().Get("validationToken"); token != "" {
		logger.Infof("Handling validation token")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, token)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.secretKey != "" && r.Header.Get("x-api-key") != s.secretKey {
		logger.Errorf("Auth Error. Invalid secret key used.")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var batch models.NotificationBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		logger.Errorf("Failed to decode notification payload: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, notification := range batch.Value {
		if err := s.queue.Enqueue(r.Context(), notification); err != nil {
			// A failed enqueue turns into a retried delivery from the
			// alerting service, preserving at-least-once handoff.
			logger.Errorf("Failed to enqueue notification: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		metrics.NotificationsReceived.Inc()
	}

	w.WriteHeader(http.StatusAccepted)
}
