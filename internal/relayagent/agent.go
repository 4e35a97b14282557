package relayagent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fileferry/fileferry/internal/relay"
	"github.com/fileferry/fileferry/pkg/logging"
)

// Agent is the long-running relay process: it sweeps orphaned multipart
// sessions at startup and serves health and metrics endpoints while the chat
// transport feeds transfers into the orchestrator.
type Agent struct {
	config       *Config
	orchestrator *relay.Orchestrator
	logger       logging.Interface
}

// NewAgent creates the relay agent.
func NewAgent(config *Config, orchestrator *relay.Orchestrator, logger logging.Interface) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	return &Agent{
		config:       config,
		orchestrator: orchestrator,
		logger:       logger,
	}, nil
}

// Start runs the agent until SIGINT or SIGTERM, then drains within the
// configured grace period.
func (a *Agent) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.config.AbortOrphansOnStart {
		if err := a.orchestrator.AbortOrphans(ctx); err != nil {
			a.logger.WithError(err).Warn("Orphaned session sweep incomplete")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              a.config.BindAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.WithField("address", a.config.BindAddress).Info("Relay agent listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("agent server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutdown signal received, draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("agent shutdown: %w", err)
	}
	return nil
}

// IssueLink mints a retrieval link for an existing object and prints it.
func (a *Agent) IssueLink(key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	link, err := a.orchestrator.Link(ctx, key, ttl)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", link.URL)
	a.logger.WithField("key", key).WithField("expiresAt", link.ExpiresAt).Info("Link issued")
	return nil
}

// Remove deletes an object from the store.
func (a *Agent) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.orchestrator.Remove(ctx, key)
}
