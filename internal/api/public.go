package api

import (
	"net/http"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/store"
)

// PublicHandler serves unauthenticated platform endpoints.
type PublicHandler struct {
	DB  *db.DB
	Log *logger.Logger
}

type publicStats struct {
	TotalUsers     int `json:"totalUsers"`
	ListedItems    int `json:"listedItems"`
	CompletedSwaps int `json:"completedSwaps"`
}

// Stats handles GET /api/stats.
func (h *PublicHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := store.GetPlatformStats(ctx, h.DB)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, publicStats{
		TotalUsers:     st.TotalUsers,
		ListedItems:    st.ListedItems,
		CompletedSwaps: st.CompletedSwaps,
	})
}

// Health handles GET /api/health.
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.DB.PingContext(ctx); err != nil {
		writeError(ctx, h.Log, w, apperr.Wrap(apperr.CodeDependency, err, "database unavailable"))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
