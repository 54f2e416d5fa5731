// Package httpapi mirrors the orchestrator's observation surface over
// HTTP (gorilla/mux) and streams tick events to connected dashboards over
// WebSocket (gorilla/websocket), the same split the teacher uses between
// its REST handlers and consumer/websocket.go hub. It is a thin shell: the
// orchestrator itself stays single-threaded and synchronous, called once
// per request.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"rtgssim/internal/checkpointstore"
	"rtgssim/internal/orchestrator"
)

// Server exposes an Orchestrator over HTTP plus a live event stream.
type Server struct {
	orch  *orchestrator.Orchestrator
	hub   *Hub
	store checkpointstore.Store

	episodeID string

	mu sync.Mutex
}

// New builds a Server around an already-constructed orchestrator. store may
// be nil, in which case ticks are never archived.
func New(orch *orchestrator.Orchestrator, store checkpointstore.Store, episodeID string) *Server {
	return &Server{orch: orch, hub: NewHub(), store: store, episodeID: episodeID}
}

// Router builds the mux.Router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/tick", s.handleTick).Methods(http.MethodPost)
	r.HandleFunc("/transactions", s.handleSubmitTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods(http.MethodGet)
	r.HandleFunc("/agents/{id}", s.handleGetAgent).Methods(http.MethodGet)
	r.HandleFunc("/queue/rtgs", s.handleRTGSQueue).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/checkpoints", s.handleListCheckpoints).Methods(http.MethodGet)
	r.HandleFunc("/checkpoints/latest", s.handleLatestCheckpoint).Methods(http.MethodGet)
	r.HandleFunc("/ws/events", s.hub.ServeWS).Methods(http.MethodGet)
	return r
}

// Run starts the hub's broadcast loop in the background. The caller still
// owns http.ListenAndServe against Router().
func (s *Server) Run() {
	go s.hub.Run()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result := s.orch.Tick()
	events := s.orch.GetTickEvents(result.Tick)
	snap := s.orch.Snapshot()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(r.Context(), s.episodeID, result.Tick, snap); err != nil {
			log.Printf("httpapi: failed to archive checkpoint for tick %d: %v", result.Tick, err)
		}
	}

	s.hub.BroadcastTick(result, events)
	writeJSON(w, http.StatusOK, result)
}

type submitTransactionRequest struct {
	Sender       string `json:"sender"`
	Receiver     string `json:"receiver"`
	Amount       int64  `json:"amount"`
	DeadlineTick int    `json:"deadline_tick"`
	Priority     int    `json:"priority"`
	Divisible    bool   `json:"divisible"`
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	id, err := s.orch.SubmitTransaction(req.Sender, req.Receiver, req.Amount, req.DeadlineTick, req.Priority, req.Divisible)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	tx, err := s.orch.GetTransaction(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	balance, err := s.orch.GetAgentBalance(id)
	if err == nil {
		var unsecuredCap, posted, avail int64
		unsecuredCap, err = s.orch.GetAgentUnsecuredCap(id)
		if err == nil {
			posted, err = s.orch.GetAgentPostedCollateral(id)
		}
		if err == nil {
			avail, err = s.orch.GetAgentAvailableLiquidity(id)
		}
		if err == nil {
			s.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]int64{
				"balance":             balance,
				"unsecured_cap":       unsecuredCap,
				"posted_collateral":   posted,
				"available_liquidity": avail,
			})
			return
		}
	}
	s.mu.Unlock()
	writeError(w, http.StatusNotFound, err)
}

func (s *Server) handleRTGSQueue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	queue := s.orch.GetRTGSQueueContents()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.orch.Snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []checkpointstore.Meta{})
		return
	}
	metas, err := s.store.List(r.Context(), s.episodeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *Server) handleLatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errNoCheckpointStore)
		return
	}
	snap, tick, err := s.store.Latest(r.Context(), s.episodeID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tick": tick, "snapshot": snap})
}

var errNoCheckpointStore = simpleError("no checkpoint store configured")

type simpleError string

func (e simpleError) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
