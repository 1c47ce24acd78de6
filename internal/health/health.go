package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gitboard/gitboard/internal/githubapi"
)

// Mode indicates high-level health mode.
type Mode string

const (
	// ModeHealthy indicates GitHub is reachable with the configured credential.
	ModeHealthy Mode = "healthy"
	// ModeDegraded indicates the app serves held data but GitHub probing fails.
	ModeDegraded Mode = "degraded"
	// ModeNoCredential indicates no token is configured; the app is ready but idle.
	ModeNoCredential Mode = "no_credential"
)

// Status represents evaluated application health.
type Status struct {
	Mode          Mode            `json:"mode"`
	Ready         bool            `json:"ready"`
	Components    map[string]bool `json:"components"`
	RateRemaining int             `json:"rate_remaining"`
	LastProbeUnix int64           `json:"last_probe_unix"`
}

// Provider supplies current health status.
type Provider interface {
	CurrentStatus(ctx context.Context) Status
}

// RateLimitProber reads the GitHub core rate-limit bucket.
type RateLimitProber interface {
	GetRateLimit(ctx context.Context) (githubapi.RateLimitResult, error)
}

// CredentialChecker reports whether a credential is configured.
type CredentialChecker interface {
	HasToken() bool
}

// Monitor probes GitHub's /rate_limit endpoint periodically and hysteresis-
// filters the results: a single failed probe does not flip health, and
// recovery needs consecutive successes. Without a credential the monitor
// skips probing entirely and reports ready, so a fresh install is not
// restart-looped by its own readiness probe.
type Monitor struct {
	prober           RateLimitProber
	credentials      CredentialChecker
	logger           *zap.Logger
	interval         time.Duration
	failureThreshold int
	recoverThreshold int

	mu            sync.RWMutex
	healthy       bool
	failures      int
	successes     int
	rateRemaining int
	lastProbe     time.Time
}

// NewMonitor creates a GitHub health monitor.
func NewMonitor(prober RateLimitProber, credentials CredentialChecker, logger *zap.Logger, interval time.Duration, failureThreshold, recoverThreshold int) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if recoverThreshold <= 0 {
		recoverThreshold = 2
	}
	return &Monitor{
		prober:           prober,
		credentials:      credentials,
		logger:           logger,
		interval:         interval,
		failureThreshold: failureThreshold,
		recoverThreshold: recoverThreshold,
		healthy:          true,
	}
}

// Run probes until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	if !m.credentials.HasToken() {
		m.mu.Lock()
		m.healthy = true
		m.failures = 0
		m.successes = 0
		m.lastProbe = time.Now()
		m.mu.Unlock()
		return
	}

	result, err := m.prober.GetRateLimit(ctx)
	ok := err == nil && result.Status == githubapi.EndpointStatusOK

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastProbe = time.Now()

	if ok {
		m.rateRemaining = result.Core.Remaining
		m.failures = 0
		if !m.healthy {
			m.successes++
			if m.successes >= m.recoverThreshold {
				m.healthy = true
				m.successes = 0
				m.logger.Info("github probe recovered")
			}
		}
		return
	}

	m.successes = 0
	m.failures++
	if m.healthy && m.failures >= m.failureThreshold {
		m.healthy = false
		m.logger.Warn("github probe unhealthy",
			zap.Int("consecutive_failures", m.failures),
			zap.Error(err),
		)
	}
}

// CurrentStatus implements Provider.
func (m *Monitor) CurrentStatus(_ context.Context) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hasToken := m.credentials.HasToken()
	mode := ModeHealthy
	switch {
	case !hasToken:
		mode = ModeNoCredential
	case !m.healthy:
		mode = ModeDegraded
	}

	return Status{
		Mode:  mode,
		Ready: true,
		Components: map[string]bool{
			"credential": hasToken,
			"github":     m.healthy,
		},
		RateRemaining: m.rateRemaining,
		LastProbeUnix: m.lastProbe.Unix(),
	}
}

// NewHandler returns the health HTTP handler with /livez, /readyz, and /healthz endpoints.
func NewHandler(provider Provider) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			return
		}
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		status := provider.CurrentStatus(r.Context())
		if status.Ready {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("ready")); err != nil {
				return
			}
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("not ready")); err != nil {
			return
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := provider.CurrentStatus(r.Context())
		payload, err := json.Marshal(status)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			if _, writeErr := w.Write([]byte(`{"mode":"degraded","error":"marshal health status"}`)); writeErr != nil {
				return
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(payload); err != nil {
			return
		}
	})

	return mux
}
