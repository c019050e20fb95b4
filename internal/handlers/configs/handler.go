package configs

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/handlers"
	"gitlab.com/ccsd.net/internal/telemetry"
)

const defaultHistoryLimit = 20

// ApiHandler serves the configuration document over HTTP
type ApiHandler struct {
	ConfigService configsvc.IConfigService
	UpdateService update.IUpdateService
	Logger        primary.Logger
}

func NewHandler(configService configsvc.IConfigService, updateService update.IUpdateService, logger primary.Logger) *ApiHandler {
	return &ApiHandler{
		ConfigService: configService,
		UpdateService: updateService,
		Logger:        logger,
	}
}

// Register mounts the routes; writes pass through protect
func (api *ApiHandler) Register(r *mux.Router, protect func(http.Handler) http.Handler) {
	r.Handle("/api/config", telemetry.Instrument("config_get", http.HandlerFunc(api.GetConfig))).Methods("GET")
	r.Handle("/api/config/query", telemetry.Instrument("config_query", http.HandlerFunc(api.QueryConfig))).Methods("GET")
	r.Handle("/api/config/history", telemetry.Instrument("config_history", http.HandlerFunc(api.History))).Methods("GET")
	r.Handle("/api/config", telemetry.Instrument("config_set", protect(http.HandlerFunc(api.SetConfig)))).Methods("POST")
}

func (api *ApiHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, api.ConfigService.Current())
}

// QueryConfig matches q, resolved against cwp, and returns the matching entries
func (api *ApiHandler) QueryConfig(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		handlers.ResponseError(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	cwp := r.URL.Query().Get("cwp")
	if cwp == "" {
		cwp = "/"
	}

	matches := api.ConfigService.Current().Match(domain.Resolve(cwp, q))
	handlers.ResponseWithJson(w, http.StatusOK, map[string]interface{}{
		"query":   q,
		"entries": matches,
	})
}

func (api *ApiHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handlers.ResponseError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	versions, err := api.ConfigService.History(r.Context(), limit)
	if err != nil {
		api.Logger.Error("Failed to list config history", "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}

	out := make([]HistoryEntry, 0, len(versions))
	for _, v := range versions {
		out = append(out, HistoryEntry{
			Version:     v.Version,
			TxnID:       v.TxnID.String(),
			CommittedAt: v.CommittedAt,
		})
	}
	handlers.ResponseWithJson(w, http.StatusOK, out)
}

// SetConfig writes one entry and rolls the new document out to the cluster
func (api *ApiHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req domain.SetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Logger.Error("Failed to decode request", "error", err)
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	doc, err := api.ConfigService.Current().With(req.Path, req.Value)
	if err != nil {
		handlers.ResponseServiceError(w, err)
		return
	}

	version, err := api.UpdateService.Start(r.Context(), doc)
	if err != nil {
		api.Logger.Error("Failed to roll out config change", "path", req.Path, "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, SetConfigResponse{Version: version})
}
