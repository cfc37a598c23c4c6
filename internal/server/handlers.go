package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// SnapshotService is the read side of the snapshot controller
type SnapshotService interface {
	GetSnapshot(ctx context.Context) models.Snapshot
	TriggerRefresh(ctx context.Context) models.Snapshot
	Status() models.Status
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Snapshots   SnapshotService // Snapshot controller
	RefreshWait time.Duration   // How long POST /refresh waits for the new snapshot
	DevMode     bool            // Enable detailed error responses in development
	Logger      *logrus.Logger  // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Tokens returns one page of the served snapshot
// Accepts page (default 1), limit (default 50, range 1-500), sort and order (asc|desc)
func (h *Handlers) Tokens(c echo.Context) error {
	page, err := intParam(c, "page", 1)
	if err != nil || page < 1 {
		return h.err(c, http.StatusBadRequest, "invalid page", map[string]any{"page": "must be a positive integer"})
	}
	limit, err := intParam(c, "limit", 50)
	if err != nil || limit < 1 || limit > 500 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 500"})
	}

	sortKey := strings.ToLower(strings.TrimSpace(c.QueryParam("sort")))
	if sortKey != "" {
		if _, ok := sortKeys[sortKey]; !ok {
			return h.err(c, http.StatusBadRequest, "invalid sort", map[string]any{"sort": "unknown key"})
		}
	}
	order := strings.ToLower(strings.TrimSpace(c.QueryParam("order")))
	if order != "" && order != "asc" && order != "desc" {
		return h.err(c, http.StatusBadRequest, "invalid order", map[string]any{"order": "must be asc or desc"})
	}

	snap := h.Snapshots.GetSnapshot(c.Request().Context())
	recs := snap.Records
	if sortKey != "" {
		sortRecords(recs, sortKey, order != "asc")
	}

	total := len(recs)
	// compare before multiplying so a huge page cannot overflow
	start := total
	if page-1 <= total/limit {
		start = (page - 1) * limit
	}
	end := start + limit
	if end > total {
		end = total
	}

	resp := TokensResponse{
		Items:   recs[start:end],
		Page:    page,
		Limit:   limit,
		Total:   total,
		Success: snap.Success,
	}
	if !snap.BuiltAt.IsZero() {
		built := snap.BuiltAt
		resp.BuiltAt = &built
	}
	return c.JSON(http.StatusOK, resp)
}

// Token returns the record for one address
// Returns 404 if the address is not in the served snapshot
func (h *Handlers) Token(c echo.Context) error {
	addr := models.NormalizeAddress(c.Param("address"))
	if addr == "" {
		return h.err(c, http.StatusBadRequest, "invalid address", nil)
	}

	snap := h.Snapshots.GetSnapshot(c.Request().Context())
	for _, r := range snap.Records {
		if r.Address == addr {
			return c.JSON(http.StatusOK, r)
		}
	}
	return h.err(c, http.StatusNotFound, "token not found", nil)
}

// Status returns the snapshot slot summary
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Snapshots.Status())
}

// Refresh starts a refresh and waits up to RefreshWait for it. A refresh
// already in flight is not restarted; the served snapshot is reported.
func (h *Handlers) Refresh(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), h.RefreshWait)
	defer cancel()

	start := time.Now()
	snap := h.Snapshots.TriggerRefresh(ctx)
	st := h.Snapshots.Status()

	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{
			"state":   st.State,
			"records": len(snap.Records),
			"took":    time.Since(start).Round(time.Millisecond),
		}).Info("manual refresh requested")
	}

	code := http.StatusOK
	if st.State == models.StateRefreshing {
		code = http.StatusAccepted
	}
	return c.JSON(code, RefreshResponse{Status: st, RecordCount: len(snap.Records)})
}

func intParam(c echo.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
