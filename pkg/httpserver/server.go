package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelyard/selector/core"
	"github.com/modelyard/selector/picker"
	"github.com/modelyard/selector/pkg/registry"
)

// Server represents the HTTP server
type Server struct {
	port   string
	logger *slog.Logger
	router *http.ServeMux
	picker *picker.Service
}

// ChampionRequest asks for a champion among regression candidates. When no
// candidates are supplied the server uses its loaded registry.
type ChampionRequest struct {
	Model      string            `json:"model"`
	Candidates []registry.Record `json:"candidates,omitempty"`
}

// ChampionResponse carries the winning snapshot, or null when nothing
// survived the quality gates.
type ChampionResponse struct {
	Winner *SnapshotPayload `json:"winner"`
}

// SnapshotPayload is the wire shape of a regression snapshot.
type SnapshotPayload struct {
	ID        string    `json:"id"`
	ModelName string    `json:"model_name"`
	TrainedAt time.Time `json:"trained_at"`
	RSquared  float64   `json:"r_squared"`
	RMSE      float64   `json:"rmse"`
}

// RankRequest asks for the best record among heterogeneous evaluations.
type RankRequest struct {
	Records []registry.Record `json:"records"`
}

// RankResponse carries the ranking outcome, or null when no record was
// rankable.
type RankResponse struct {
	Outcome *OutcomePayload `json:"outcome"`
}

// OutcomePayload is the wire shape of a ranking outcome.
type OutcomePayload struct {
	RecordID  string  `json:"record_id"`
	ModelName string  `json:"model_name"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"`
	Detail    string  `json:"detail"`
}

// ErrorResponse is the wire shape of an error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewServer creates a new HTTP server around a picker service.
func NewServer(port string, logger *slog.Logger, svc *picker.Service) *Server {
	s := &Server{
		port:   port,
		logger: logger,
		router: http.NewServeMux(),
		picker: svc,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	v1 := http.NewServeMux()
	v1.HandleFunc("/champion", s.handleChampion)
	v1.HandleFunc("/rank", s.handleRank)

	s.router.Handle("/v1/", http.StripPrefix("/v1", v1))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "port", s.port)
	return http.ListenAndServe(":"+s.port, s.router)
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"selector","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleChampion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChampionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", "INVALID_JSON", http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		s.writeError(w, "Model name is required", "MISSING_MODEL", http.StatusBadRequest)
		return
	}

	var winner *core.RegressionSnapshot
	if len(req.Candidates) == 0 {
		winner = s.picker.SelectChampionFromRegistry(r.Context(), req.Model)
	} else {
		candidates := make([]core.RegressionSnapshot, 0, len(req.Candidates))
		for _, rec := range req.Candidates {
			if snap, ok := rec.Snapshot(); ok {
				candidates = append(candidates, snap)
			}
		}
		winner = s.picker.SelectChampion(r.Context(), req.Model, candidates)
	}

	resp := ChampionResponse{}
	if winner != nil {
		resp.Winner = &SnapshotPayload{
			ID:        winner.ID,
			ModelName: winner.ModelName,
			TrainedAt: winner.TrainedAt,
			RSquared:  winner.RSquared,
			RMSE:      winner.RMSE,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", "INVALID_JSON", http.StatusBadRequest)
		return
	}

	records := make([]core.EvaluationRecord, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, rec.Evaluation())
	}

	outcome := s.picker.RankRecords(r.Context(), records)

	resp := RankResponse{}
	if outcome != nil {
		resp.Outcome = &OutcomePayload{
			RecordID:  outcome.Record.ID,
			ModelName: outcome.Record.ModelName,
			Score:     outcome.Score,
			Source:    string(outcome.Source),
			Detail:    outcome.Detail,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}
