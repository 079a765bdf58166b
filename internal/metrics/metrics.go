package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tick metrics
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idlewatch_ticks_total",
			Help: "Total number of sampling ticks completed",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "idlewatch_tick_duration_seconds",
			Help:    "Time spent sampling all signals in one tick",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Probe metrics
	ProbeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlewatch_probe_failures_total",
			Help: "Total probes that returned no reading",
		},
		[]string{"signal"},
	)

	IdleSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "idlewatch_idle_seconds",
			Help: "Most recent OS idle counter reading",
		},
	)

	// State metrics
	StateSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlewatch_state_seconds_total",
			Help: "Seconds accounted to each activity state, counted when an interval closes",
		},
		[]string{"state"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlewatch_transitions_total",
			Help: "Total activity state transitions",
		},
		[]string{"from", "to"},
	)

	CurrentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idlewatch_current_state",
			Help: "1 for the current activity state, 0 otherwise",
		},
		[]string{"state"},
	)

	// Sink metrics
	SinkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlewatch_sink_errors_total",
			Help: "Total failed writes to output sinks",
		},
		[]string{"sink"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TicksTotal,
		TickDuration,
		ProbeFailuresTotal,
		IdleSeconds,
		StateSecondsTotal,
		TransitionsTotal,
		CurrentState,
		SinkErrorsTotal,
	)
}

// SetCurrentState marks state as current and every other listed state as not.
func SetCurrentState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		CurrentState.WithLabelValues(s).Set(v)
	}
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for tests)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			return err
		}
		s.listener = ln
	}

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting metrics server")
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the address the server is listening on, once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
