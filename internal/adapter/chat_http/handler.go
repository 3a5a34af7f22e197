// Package chat_http exposes the chat pipeline over HTTP with echo.
package chat_http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"scholarship-rag/internal/domain"
	"scholarship-rag/internal/infra/logger"
	"scholarship-rag/internal/usecase"
)

const msgQuestionRequired = "Question is required"

type Handler struct {
	chat   usecase.ChatUsecase
	health usecase.HealthUsecase
	logger *slog.Logger
}

func NewHandler(chat usecase.ChatUsecase, health usecase.HealthUsecase, logger *slog.Logger) *Handler {
	return &Handler{chat: chat, health: health, logger: logger}
}

// Register mounts the chat routes on e.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/chat", h.Chat)
	e.GET("/health", h.Health)
	e.GET("/readyz", h.Ready)
	e.DELETE("/session/:sessionId", h.ClearSession)
}

type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

type SourceResponse struct {
	Source string  `json:"source"`
	Page   *int    `json:"page,omitempty"`
	Score  float32 `json:"score"`
}

type ChatResponse struct {
	Success bool             `json:"success"`
	Answer  string           `json:"answer"`
	Query   string           `json:"query"`
	Sources []SourceResponse `json:"sources"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Ollama    string `json:"ollama"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

type SessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ReadyResponse struct {
	Ready       bool   `json:"ready"`
	Index       string `json:"index"`
	State       string `json:"state,omitempty"`
	VectorCount int64  `json:"vectorCount"`
	Message     string `json:"message,omitempty"`
}

// Chat answers one question.
// (POST /chat)
func (h *Handler) Chat(ctx echo.Context) error {
	var req ChatRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: msgQuestionRequired, Message: "invalid request body"})
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}
	reqCtx := logger.WithSessionID(ctx.Request().Context(), sessionID)

	out, err := h.chat.Chat(reqCtx, usecase.ChatInput{
		Question:  req.Question,
		SessionID: sessionID,
	})
	if err != nil {
		if usecase.IsValidationError(err) {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: msgQuestionRequired})
		}
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to process question",
			Message: err.Error(),
		})
	}

	sources := make([]SourceResponse, 0, len(out.Sources))
	for _, s := range out.Sources {
		sources = append(sources, SourceResponse{Source: s.Source, Page: s.Page, Score: s.Score})
	}
	return ctx.JSON(http.StatusOK, ChatResponse{
		Success: true,
		Answer:  out.Answer,
		Query:   out.Query,
		Sources: sources,
	})
}

// Health probes the embedding service.
// (GET /health)
func (h *Handler) Health(ctx echo.Context) error {
	status := h.health.Check(ctx.Request().Context())
	timestamp := status.CheckedAt.Format(time.RFC3339)

	if !status.Healthy {
		message := "embedding service unavailable"
		if status.Err != nil {
			message = status.Err.Error()
		}
		return ctx.JSON(http.StatusInternalServerError, HealthResponse{
			Status:    "error",
			Ollama:    "error",
			Message:   message,
			Timestamp: timestamp,
		})
	}
	return ctx.JSON(http.StatusOK, HealthResponse{
		Success:   true,
		Status:    "ok",
		Ollama:    "connected",
		Timestamp: timestamp,
	})
}

// Ready reports whether the vector index can serve queries.
// (GET /readyz)
func (h *Handler) Ready(ctx echo.Context) error {
	r := h.health.Ready(ctx.Request().Context())
	resp := ReadyResponse{Ready: r.Ready, Index: r.Index, State: r.State, VectorCount: r.VectorCount}
	if r.Err != nil {
		resp.Message = r.Err.Error()
	}
	if !r.Ready {
		return ctx.JSON(http.StatusServiceUnavailable, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}

// ClearSession deletes one conversation. Unknown ids succeed.
// (DELETE /session/:sessionId)
func (h *Handler) ClearSession(ctx echo.Context) error {
	sessionID := ctx.Param("sessionId")
	if err := h.chat.ClearSession(ctx.Request().Context(), sessionID); err != nil {
		h.logger.ErrorContext(ctx.Request().Context(), "session_clear_failed",
			slog.String("error", err.Error()))
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to clear session",
			Message: err.Error(),
		})
	}
	return ctx.JSON(http.StatusOK, SessionResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s cleared", sessionID),
	})
}
