package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dshills/watchgraph/internal/redact"
	"github.com/dshills/watchgraph/internal/schema"
)

// detail writes the {"detail": msg} error envelope.
func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

// storeError maps store errors to HTTP responses.
func storeError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		detail(c, http.StatusNotFound, err.Error())
		return
	}
	detail(c, http.StatusUnprocessableEntity, err.Error())
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ListSystems(st *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, st.Systems())
	}
}

func GetSystem(st *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := st.System(c.Param("id"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func CreateSystem(st *Store, m *Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in schema.System
		if err := c.ShouldBindJSON(&in); err != nil {
			detail(c, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		s, ms, err := st.CreateSystem(in)
		if err != nil {
			storeError(c, err)
			return
		}
		m.ObserveSnapshot(schema.Snapshot{SystemID: s.ID})
		logger.Info("system registered",
			slog.String("system_id", s.ID),
			slog.String("risk_category", string(s.RiskCategory)),
			slog.Int("requirements", len(ms)),
		)
		c.JSON(http.StatusCreated, s)
	}
}

func ListRequirements(st *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ms, err := st.Requirements(c.Param("id"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ms)
	}
}

func GetCompliance(st *Store, m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := st.Snapshot(c.Param("id"))
		if err != nil {
			storeError(c, err)
			return
		}
		m.ObserveSnapshot(snap)
		c.JSON(http.StatusOK, snap)
	}
}

type batchRequest struct {
	SystemIDs []string `json:"system_ids" binding:"required,min=1"`
}

// BatchCompliance answers several compliance lookups at once. Unknown ids are
// omitted from results.
func BatchCompliance(st *Store, m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req batchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			detail(c, http.StatusBadRequest, "system_ids is required")
			return
		}
		results, err := st.ComputeMany(req.SystemIDs)
		if err != nil {
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}
		for _, snap := range results {
			m.ObserveSnapshot(snap)
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func GetRequirement(st *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		mp, err := st.Mapping(c.Param("mapping_id"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, mp)
	}
}

func UpdateRequirement(st *Store, m *Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var u schema.StatusUpdate
		if err := c.ShouldBindJSON(&u); err != nil {
			detail(c, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		mp, change, err := st.UpdateMapping(c.Param("mapping_id"), u)
		if err != nil {
			storeError(c, err)
			return
		}
		if snap, err := st.Snapshot(mp.SystemID); err == nil {
			m.ObserveSnapshot(snap)
		}
		attrs := []any{
			slog.String("mapping_id", mp.MappingID),
			slog.String("system_id", mp.SystemID),
			slog.String("status", string(mp.Status)),
		}
		if change != nil {
			attrs = append(attrs, slog.String("notes", change.Summary))
		}
		logger.Info("requirement updated", attrs...)
		if u.Notes != nil {
			if found := redact.Matched(*u.Notes); len(found) > 0 {
				logger.Warn("notes contain sensitive content",
					slog.String("mapping_id", mp.MappingID),
					slog.Any("kinds", found),
				)
			}
		}
		c.JSON(http.StatusOK, mp)
	}
}

func ListChanges(st *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		changes, err := st.Changes(c.Param("mapping_id"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": changes})
	}
}

func DashboardStats(st *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := st.Stats()
		if err != nil {
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// EvidenceUnavailable answers every evidence route: blobs live in external
// storage this server does not front.
func EvidenceUnavailable(c *gin.Context) {
	detail(c, http.StatusNotImplemented, "evidence storage is not available on this server")
}
