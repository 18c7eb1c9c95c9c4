// Package service exposes the node's operational surface over HTTP: read
// endpoints for stats, membership, the hive map and intents, and write
// endpoints for the operator-initiated governance actions.
package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/hivemesh/hive/src/members"
	"github.com/hivemesh/hive/src/node"
	"github.com/sirupsen/logrus"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of
// the http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/members", s.makeHandler(s.GetMembers))
	http.HandleFunc("/hivemap", s.makeHandler(s.GetHiveMap))
	http.HandleFunc("/intents", s.makeHandler(s.GetIntents))
	http.HandleFunc("/breaker", s.makeHandler(s.GetBreaker))
	http.HandleFunc("/vouch", s.makeHandler(s.PostVouch))
	http.HandleFunc("/promote", s.makeHandler(s.PostPromote))
	http.HandleFunc("/ban", s.makeHandler(s.PostBan))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when another server has already been started with the
// DefaultServerMux and the same address:port combination.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetMembers returns the membership registry.
func (s *Service) GetMembers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.Registry().Members())
}

// GetHiveMap returns the shared-state entries.
func (s *Service) GetHiveMap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.HiveMap().Snapshot())
}

// intentView is the external shape of a tracked intent.
type intentView struct {
	IntentID     string
	InitiatorPub string
	Action       string
	Target       string
	State        string
}

// GetIntents returns the undecided intents.
func (s *Service) GetIntents(w http.ResponseWriter, r *http.Request) {
	pending := s.node.PendingIntents()

	views := make([]intentView, 0, len(pending))
	for _, it := range pending {
		views = append(views, intentView{
			IntentID:     it.Notice.IntentID,
			InitiatorPub: it.Notice.InitiatorPub,
			Action:       it.Notice.Action,
			Target:       it.Notice.Target,
			State:        it.State.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(views)
}

// GetBreaker returns the fee-bridge circuit breaker state.
func (s *Service) GetBreaker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]string{
		"state": s.node.BreakerState().String(),
	})
}

// vouchRequest is the body of a POST /vouch.
type vouchRequest struct {
	TargetPub string
	RequestID string
}

// PostVouch signs and broadcasts a vouch on behalf of this node.
func (s *Service) PostVouch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req vouchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := s.node.Vouch(req.TargetPub, req.RequestID)
	if err != nil {
		s.logger.WithError(err).Error("Vouch failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}

// promoteRequest is the body of a POST /promote.
type promoteRequest struct {
	CandidatePub string
	ToTier       string
}

// PostPromote starts the intent-gated promotion of a candidate.
func (s *Service) PostPromote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tier, ok := members.ParseTier(req.ToTier)
	if !ok {
		http.Error(w, "unknown tier", http.StatusBadRequest)
		return
	}

	notice, err := s.node.ProposePromotion(req.CandidatePub, tier)
	if err != nil {
		s.logger.WithError(err).Error("Promotion proposal failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(notice)
}

// banRequest is the body of a POST /ban.
type banRequest struct {
	TargetPub string
}

// PostBan starts the intent-gated ban of a peer.
func (s *Service) PostBan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	notice, err := s.node.ProposeBan(req.TargetPub)
	if err != nil {
		s.logger.WithError(err).Error("Ban proposal failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(notice)
}
