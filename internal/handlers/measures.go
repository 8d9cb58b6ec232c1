package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"capteur/internal/metrics"
	"capteur/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errFromInvalid   = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid     = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errInvalidBody   = "invalid body: "
	errStoreMeasure  = "failed to store measure"
	errListMeasures  = "failed to load measures"
	errLatestMeasure = "failed to load latest measure"
	errNoMeasure     = "no measure for capteur"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
	// numeric offset without colon, as some device clocks render it
	layoutCompactZone = "2006-01-02T15:04:05-0700"
)

// measureRequest is the body posted by a node.
type measureRequest struct {
	Timestamp   string   `json:"timestamp" binding:"required"`
	CapteurID   string   `json:"capteur_id" binding:"required"`
	Temperature *float64 `json:"temperature" binding:"required"`
	Humidity    *float64 `json:"humidity" binding:"required"`
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// getNow answers the node's one-shot clock synchronization.
//
// @Summary      Current UTC time for clock synchronization
// @Tags         node
// @Produce      json
// @Success      200  {object}  models.RemoteTimeSample
// @Router       /now [get]
func (h *Handler) getNow(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Clock.Now())
}

// postMeasure stores one reading. Any failure, storage included, answers 400
// because the node never retries.
//
// @Summary      Store one reading
// @Tags         node
// @Accept       json
// @Produce      json
// @Param        measure  body      measureRequest  true  "reading"
// @Success      201      {object}  models.MeasureRecord
// @Failure      400      {object}  map[string]string
// @Router       /measure [post]
func (h *Handler) postMeasure(c *gin.Context) {
	var req measureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.MeasuresReceivedTotal.WithLabelValues(metrics.ResultError).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
		return
	}
	ts, err := parseMeasureTime(req.Timestamp)
	if err != nil {
		metrics.MeasuresReceivedTotal.WithLabelValues(metrics.ResultError).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
		return
	}

	rec, err := h.services.Measures.Record(c.Request.Context(), service.MeasureInput{
		Timestamp:   ts,
		CapteurID:   req.CapteurID,
		Temperature: *req.Temperature,
		Humidity:    *req.Humidity,
	})
	if err != nil {
		metrics.MeasuresReceivedTotal.WithLabelValues(metrics.ResultError).Inc()
		if errors.Is(err, service.ErrInvalidMeasure) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusBadRequest, errStoreMeasure, "measure_store_failed", err, "capteur", req.CapteurID)
		return
	}

	metrics.MeasuresReceivedTotal.WithLabelValues(metrics.ResultOK).Inc()
	h.log.Infow("measure_received",
		"capteur", rec.CapteurID,
		"timestamp", rec.Timestamp,
		"temperature", rec.Temperature,
		"humidity", rec.Humidity,
	)
	c.JSON(http.StatusCreated, rec)
}

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      List stored readings
// @Tags         measures
// @Produce      json
// @Param        from     query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        to       query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        capteur  query     string  false  "node id"
// @Success      200      {object}  map[string]interface{}  "count, measures"
// @Failure      400      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /api/v1/measures [get]
func (h *Handler) getMeasures(c *gin.Context) {
	var (
		from, to time.Time
		capteur  = strings.TrimSpace(c.Query("capteur"))
		err      error
	)
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	// A date-only 'to' covers the whole day.
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}

	measures, err := h.services.Measures.List(c.Request.Context(), service.MeasureFilter{
		From:    from,
		To:      to,
		Capteur: capteur,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidTimeRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must be <= 'to'"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errListMeasures, "measures_list_failed", err,
			"from", from, "to", to, "capteur", capteur)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(measures),
		"measures": measures,
	})
}

// @Summary      Latest reading of one node
// @Tags         measures
// @Produce      json
// @Param        id   path      string  true  "node id"
// @Success      200  {object}  models.MeasureRecord
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/capteurs/{id}/latest [get]
func (h *Handler) getLatest(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.services.Measures.Latest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errNoMeasure})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errLatestMeasure, "measure_latest_failed", err, "capteur", id)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func parseMeasureTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, layoutCompactZone} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, expected RFC3339", s)
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
