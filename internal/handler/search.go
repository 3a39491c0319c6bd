package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/voyago/flightsearch/internal/faillog"
	"github.com/voyago/flightsearch/internal/models"
	"github.com/voyago/flightsearch/internal/orchestrator"
	"github.com/voyago/flightsearch/internal/registry"
	"github.com/voyago/flightsearch/internal/session"
)

type searchFunc func(ctx context.Context, caller orchestrator.Caller, req models.FlightSearchRequest) (*models.SearchOutcome, error)

type SearchHandler struct {
	orchestrator *orchestrator.Orchestrator
	registry     *registry.Registry
	sessions     *session.Store
	failures     *faillog.Logger
	sweepSecret  string
}

func NewSearchHandler(orch *orchestrator.Orchestrator, reg *registry.Registry, sessions *session.Store, failures *faillog.Logger, sweepSecret string) *SearchHandler {
	return &SearchHandler{
		orchestrator: orch,
		registry:     reg,
		sessions:     sessions,
		failures:     failures,
		sweepSecret:  sweepSecret,
	}
}

type searchBody struct {
	ConversationID string `json:"conversation_id"`
	// UserID and QueryText are optional caller context for the failed-search
	// review surface.
	UserID    string `json:"user_id"`
	QueryText string `json:"query_text"`
	models.FlightSearchRequest
}

func (h *SearchHandler) Search(c echo.Context) error {
	return h.run(c, h.orchestrator.Search)
}

func (h *SearchHandler) SearchFlexible(c echo.Context) error {
	return h.run(c, h.orchestrator.SearchFlexible)
}

func (h *SearchHandler) SearchAlternatives(c echo.Context) error {
	return h.run(c, h.orchestrator.SearchAlternatives)
}

func (h *SearchHandler) run(c echo.Context, search searchFunc) error {
	ctx := c.Request().Context()

	var body searchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
	}
	if body.ConversationID == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "conversation_id is required",
			Code:    http.StatusBadRequest,
		})
	}

	caller := orchestrator.Caller{
		ConversationID: body.ConversationID,
		UserID:         body.UserID,
		QueryText:      body.QueryText,
	}
	outcome, err := search(ctx, caller, body.FlightSearchRequest)
	if err != nil {
		var ve models.ValidationError
		if errors.As(err, &ve) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: ve.Error(),
				Code:    http.StatusBadRequest,
			})
		}
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "search_error",
			Message: "Failed to search flights: " + err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}

	return c.JSON(http.StatusOK, outcome)
}

// ToolCall returns one registry record for status or audit.
func (h *SearchHandler) ToolCall(c echo.Context) error {
	rec, err := h.registry.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "not_found",
				Message: "No tool call with that id",
				Code:    http.StatusNotFound,
			})
		}
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "registry_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}
	return c.JSON(http.StatusOK, rec)
}

// ConversationToolCalls lists a conversation's registry records in order.
func (h *SearchHandler) ConversationToolCalls(c echo.Context) error {
	records, err := h.registry.ByConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "registry_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}
	return c.JSON(http.StatusOK, records)
}

// SessionState returns a conversation's stored search parameters.
func (h *SearchHandler) SessionState(c echo.Context) error {
	state, err := h.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "session_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}
	if state == nil {
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "No session state for that conversation",
			Code:    http.StatusNotFound,
		})
	}
	return c.JSON(http.StatusOK, state)
}

// FailedSearches queries the zero-result log by free text and date range for
// manual pattern review.
func (h *SearchHandler) FailedSearches(c echo.Context) error {
	var from, to *time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_request",
				Message: "from must be formatted YYYY-MM-DD",
				Code:    http.StatusBadRequest,
			})
		}
		from = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_request",
				Message: "to must be formatted YYYY-MM-DD",
				Code:    http.StatusBadRequest,
			})
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	entries, err := h.failures.Query(c.Request().Context(), c.QueryParam("q"), from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "faillog_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}
	return c.JSON(http.StatusOK, entries)
}

// SweepFailedSearches deletes expired log entries. The endpoint is meant for
// a scheduler and is gated by a shared secret.
func (h *SearchHandler) SweepFailedSearches(c echo.Context) error {
	secret := c.Request().Header.Get("X-Sweep-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.sweepSecret)) != 1 {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid sweep secret",
			Code:    http.StatusUnauthorized,
		})
	}

	deleted, err := h.failures.Sweep(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "faillog_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
