package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatsvc "github.com/chatloom/chatloom/internal/chat"
	"github.com/chatloom/chatloom/internal/mcpcontext"
	"github.com/chatloom/chatloom/internal/memory"
	"github.com/chatloom/chatloom/internal/observability"
	"github.com/chatloom/chatloom/internal/rpc"
)

// Service is the chat surface the transport depends on.
type Service interface {
	Chat(ctx context.Context, userID, sessionID, message string) (chatsvc.Result, error)
	ListSessions(ctx context.Context, userID string) ([]memory.Conversation, error)
	GetSession(ctx context.Context, userID, sessionID string) (*memory.Conversation, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	DeleteAllSessions(ctx context.Context, userID string) error
	DeleteEverything(ctx context.Context) error
	DashboardData(ctx context.Context) (chatsvc.Dashboard, error)
	Info() map[string]interface{}
}

// ToolDiscovery lists tools across the configured MCP servers.
type ToolDiscovery interface {
	ListServerTools(ctx context.Context) []mcpcontext.ServerToolListing
}

// Handler serves the REST chat API.
type Handler struct {
	service   Service
	discovery ToolDiscovery
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewHandler(service Service, discovery ToolDiscovery, logger *zap.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, discovery: discovery, logger: logger, metrics: metrics}
}

// Routes mounts the API under /v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", h.handleChat)
		r.Get("/sessions", h.handleListSessions)
		r.Delete("/sessions", h.handleDeleteAllSessions)
		r.Get("/sessions/{sessionID}", h.handleGetSession)
		r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
		r.Get("/admin/dashboard", h.handleDashboard)
		r.Delete("/admin/sessions", h.handleDeleteEverything)
		r.Get("/mcp/tools", h.handleListTools)
		r.Get("/info", h.handleInfo)
	})
	return r
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	h.metrics.IncActiveSessions("rest")
	defer h.metrics.DecActiveSessions("rest")

	var req rpc.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("rest", "decode")
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.service.Chat(r.Context(), req.UserID, req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("chat processing failed", zap.Error(err))
		h.metrics.RecordTransportError("rest", "chat")
		h.writeError(w, http.StatusInternalServerError, "chat processing failed")
		return
	}

	h.writeJSON(w, http.StatusOK, rpc.ChatResponse{
		UserID:      result.UserID,
		SessionID:   result.SessionID,
		Answer:      result.Answer,
		ContentType: string(result.ContentType),
		Model:       result.Model,
		Data:        rpc.ChatData{Components: result.Components},
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	out := make([]rpc.Session, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toWireSession(session, false))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	session, err := h.service.GetSession(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if errors.Is(err, memory.ErrSessionNotFound) {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	h.writeJSON(w, http.StatusOK, toWireSession(*session, true))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	err := h.service.DeleteSession(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if errors.Is(err, memory.ErrSessionNotFound) {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete session", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.service.DeleteAllSessions(r.Context(), userID); err != nil {
		h.logger.Error("failed to delete sessions", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to delete sessions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteEverything(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEverything(r.Context()); err != nil {
		h.logger.Error("failed to delete all sessions", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to delete all sessions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.DashboardData(r.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	h.writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	if h.discovery == nil {
		h.writeJSON(w, http.StatusOK, []rpc.ServerTools{})
		return
	}

	listings := h.discovery.ListServerTools(r.Context())
	out := make([]rpc.ServerTools, 0, len(listings))
	for _, listing := range listings {
		entry := rpc.ServerTools{Server: listing.Server}
		if listing.Err != nil {
			entry.Error = listing.Err.Error()
		}
		for _, tool := range listing.Tools {
			entry.Tools = append(entry.Tools, rpc.ToolInfo{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}
		out = append(out, entry)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Info())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, rpc.ErrorResponse{Error: message})
}

func toWireSession(session memory.Conversation, includeMessages bool) rpc.Session {
	out := rpc.Session{
		SessionID:    session.SessionID,
		UserID:       session.UserID,
		Title:        session.Title,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		MessageCount: session.MessageCount,
	}
	if includeMessages {
		out.Messages = make([]rpc.Message, 0, len(session.Messages))
		for _, msg := range session.Messages {
			out.Messages = append(out.Messages, rpc.Message{
				Role:        msg.Role,
				Content:     msg.Content,
				ContentType: msg.ContentType,
				Components:  msg.Components,
				Timestamp:   msg.Timestamp,
			})
		}
	}
	return out
}
