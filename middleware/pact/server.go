package pact

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"pactline-backend/core/pact"
)

// Server wires the HTTP surface for the pact ledger. Caller identity is the
// X-Pact-Address header: parties are mutually distrusting addresses, not
// sessions, and the ledger's own guards decide what each may do.
type Server struct {
	ledger   *pact.Ledger
	apiKey   string
	validate *validator.Validate
	upgrader websocket.Upgrader
	metrics  *Metrics
	log      *zap.SugaredLogger
}

// NewServer builds a Server over the ledger. apiKey may be empty to disable
// the key check. Metrics collectors go to reg; pass nil to keep them off the
// process-wide default registry.
func NewServer(ledger *pact.Ledger, apiKey string, reg prometheus.Registerer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ledger:   ledger,
		apiKey:   apiKey,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		metrics: NewMetrics(ledger, reg),
		log:     logger.Sugar(),
	}
}

// RegisterRoutes attaches handlers to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/pact/pacts", s.authWrap(s.handlePacts))
	mux.HandleFunc("/api/pact/pacts/", s.authWrap(s.handlePacts))
	mux.HandleFunc("/api/pact/reputation/", s.authWrap(s.handleReputation))
	mux.HandleFunc("/api/pact/events", s.authWrap(s.handleEvents))
	mux.HandleFunc("/api/pact/events/ws", s.authWrap(s.handleEventsWS))
}

func (s *Server) authWrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			Error(w, http.StatusForbidden, "invalid api key")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func caller(r *http.Request) pact.Address {
	return pact.Address(strings.TrimSpace(r.Header.Get("X-Pact-Address")))
}

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}

// handlePacts dispatches on the path below /api/pact/pacts.
func (s *Server) handlePacts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/pact/pacts")
	path = strings.Trim(path, "/")
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			s.handleListPacts(w, r)
		case http.MethodPost:
			s.handleCreatePact(w, r)
		default:
			Error(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	parts := strings.Split(path, "/")
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid pact id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			Error(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGetPact(w, r, id)
		return
	}

	switch parts[1] {
	case "accept":
		s.post(w, r, func() error { return s.acceptPact(r, id) }, "accept_pact")
	case "start":
		s.post(w, r, func() error { return s.ledger.StartWork(r.Context(), caller(r), id) }, "start_work")
	case "submit-work":
		s.post(w, r, func() error { return s.submitWork(r, id) }, "submit_work")
	case "verifications":
		s.handleVerifications(w, r, id, parts)
	case "finalize":
		s.handleFinalize(w, r, id)
	case "approve":
		s.post(w, r, func() error { return s.ledger.ApproveWork(r.Context(), caller(r), id) }, "approve_work")
	case "reject":
		s.post(w, r, func() error { return s.ledger.RejectWork(r.Context(), caller(r), id) }, "reject_work")
	case "auto-approve":
		s.post(w, r, func() error { return s.ledger.AutoApprove(r.Context(), caller(r), id) }, "auto_approve")
	case "amendments":
		s.handleAmendments(w, r, id, parts)
	case "disputes":
		s.handleDisputes(w, r, id, parts)
	case "timeout":
		s.post(w, r, func() error { return s.ledger.ClaimTimeout(r.Context(), caller(r), id) }, "claim_timeout")
	case "oracles":
		s.handleOracles(w, r, id)
	case "qr":
		s.handleQR(w, r, id)
	default:
		Error(w, http.StatusNotFound, "unknown pact action")
	}
}

// post runs a mutating ledger call and reports the outcome uniformly.
func (s *Server) post(w http.ResponseWriter, r *http.Request, op func() error, name string) {
	if r.Method != http.MethodPost {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	err := op()
	s.metrics.Observe(name, err)
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
