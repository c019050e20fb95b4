package cluster

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/core/services/session"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/handlers"
	"gitlab.com/ccsd.net/internal/telemetry"
)

type ApiHandler struct {
	SessionService session.ISessionService
	QuorumService  quorum.IQuorumService
	Logger         primary.Logger
}

func NewHandler(sessionService session.ISessionService, quorumService quorum.IQuorumService, logger primary.Logger) *ApiHandler {
	return &ApiHandler{
		SessionService: sessionService,
		QuorumService:  quorumService,
		Logger:         logger,
	}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.Handle("/api/sessions", telemetry.Instrument("sessions", http.HandlerFunc(api.GetSessions))).Methods("GET")
	r.Handle("/api/quorum", telemetry.Instrument("quorum", http.HandlerFunc(api.GetQuorum))).Methods("GET")
}

// SessionView is the admin view of an open descriptor
type SessionView struct {
	Desc     int32     `json:"desc"`
	CWP      string    `json:"cwp"`
	Forced   bool      `json:"forced"`
	Query    string    `json:"query,omitempty"`
	Index    int       `json:"index"`
	OpenedAt time.Time `json:"opened_at"`
	LastUsed time.Time `json:"last_used"`
}

func (api *ApiHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	views := lo.Map(api.SessionService.List(), func(s *domain.Session, _ int) SessionView {
		return SessionView{
			Desc:     s.Desc,
			CWP:      s.CWP,
			Forced:   s.Forced,
			Query:    s.Query,
			Index:    s.Index,
			OpenedAt: s.OpenedAt,
			LastUsed: s.LastUsed,
		}
	})
	handlers.ResponseWithJson(w, http.StatusOK, views)
}

func (api *ApiHandler) GetQuorum(w http.ResponseWriter, r *http.Request) {
	status, err := api.QuorumService.Status(r.Context())
	if err != nil {
		api.Logger.Error("Failed to evaluate quorum", "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}
	handlers.ResponseWithJson(w, http.StatusOK, status)
}
