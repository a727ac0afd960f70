package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	chatsvc "github.com/chatloom/chatloom/internal/chat"
	"github.com/chatloom/chatloom/internal/mcpcontext"
	"github.com/chatloom/chatloom/internal/memory"
	"github.com/chatloom/chatloom/internal/rpc"
	"github.com/chatloom/chatloom/internal/structured"
)

type fakeService struct {
	chatResult chatsvc.Result
	chatErr    error
	sessions   map[string][]memory.Conversation
	deleted    []string
	wipedAll   bool
}

func (f *fakeService) Chat(_ context.Context, userID, sessionID, message string) (chatsvc.Result, error) {
	if f.chatErr != nil {
		return chatsvc.Result{}, f.chatErr
	}
	result := f.chatResult
	if result.UserID == "" {
		result.UserID = userID
	}
	if result.SessionID == "" {
		result.SessionID = sessionID
	}
	return result, nil
}

func (f *fakeService) ListSessions(_ context.Context, userID string) ([]memory.Conversation, error) {
	return f.sessions[userID], nil
}

func (f *fakeService) GetSession(_ context.Context, userID, sessionID string) (*memory.Conversation, error) {
	for _, session := range f.sessions[userID] {
		if session.SessionID == sessionID {
			return &session, nil
		}
	}
	return nil, memory.ErrSessionNotFound
}

func (f *fakeService) DeleteSession(_ context.Context, userID, sessionID string) error {
	for _, session := range f.sessions[userID] {
		if session.SessionID == sessionID {
			f.deleted = append(f.deleted, sessionID)
			return nil
		}
	}
	return memory.ErrSessionNotFound
}

func (f *fakeService) DeleteAllSessions(_ context.Context, userID string) error {
	delete(f.sessions, userID)
	return nil
}

func (f *fakeService) DeleteEverything(context.Context) error {
	f.wipedAll = true
	return nil
}

func (f *fakeService) DashboardData(context.Context) (chatsvc.Dashboard, error) {
	return chatsvc.Dashboard{TotalUsers: 1}, nil
}

func (f *fakeService) Info() map[string]interface{} {
	return map[string]interface{}{"model": "primary"}
}

type fakeDiscovery struct {
	listings []mcpcontext.ServerToolListing
}

func (f *fakeDiscovery) ListServerTools(context.Context) []mcpcontext.ServerToolListing {
	return f.listings
}

func newTestHandler(service *fakeService, discovery ToolDiscovery) http.Handler {
	return NewHandler(service, discovery, nil, nil).Routes()
}

func TestHandleChat(t *testing.T) {
	service := &fakeService{
		chatResult: chatsvc.Result{
			UserID:      "u1",
			SessionID:   "s1",
			Answer:      "hello",
			ContentType: structured.TypeText,
			Components: []structured.Component{
				{Type: "text", Payload: map[string]interface{}{"content": "hello"}},
			},
		},
	}
	handler := newTestHandler(service, nil)

	body, _ := json.Marshal(rpc.ChatRequest{Message: "hi"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp rpc.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "u1", resp.UserID)
	require.Equal(t, "hello", resp.Answer)
	require.Len(t, resp.Data.Components, 1)
	require.Equal(t, "text", resp.Data.Components[0].Type)
}

func TestHandleChatMissingMessage(t *testing.T) {
	handler := newTestHandler(&fakeService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader([]byte(`{}`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatServiceError(t *testing.T) {
	handler := newTestHandler(&fakeService{chatErr: errors.New("boom")}, nil)

	body, _ := json.Marshal(rpc.ChatRequest{Message: "hi"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleListSessions(t *testing.T) {
	service := &fakeService{sessions: map[string][]memory.Conversation{
		"u1": {{SessionID: "s1", UserID: "u1", Title: "first", MessageCount: 2, UpdatedAt: time.Now()}},
	}}
	handler := newTestHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []rpc.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	require.Equal(t, "first", sessions[0].Title)
	require.Empty(t, sessions[0].Messages)
}

func TestHandleListSessionsRequiresUserID(t *testing.T) {
	handler := newTestHandler(&fakeService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetSessionIncludesMessages(t *testing.T) {
	service := &fakeService{sessions: map[string][]memory.Conversation{
		"u1": {{
			SessionID: "s1", UserID: "u1", MessageCount: 2,
			Messages: []memory.Message{
				{Role: "user", Content: "q", ContentType: "text"},
				{Role: "assistant", Content: "a", ContentType: "text"},
			},
		}},
	}}
	handler := newTestHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var session rpc.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.Len(t, session.Messages, 2)
	require.Equal(t, "assistant", session.Messages[1].Role)
}

func TestHandleGetSessionNotFound(t *testing.T) {
	handler := newTestHandler(&fakeService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/missing?user_id=u1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteSession(t *testing.T) {
	service := &fakeService{sessions: map[string][]memory.Conversation{
		"u1": {{SessionID: "s1", UserID: "u1"}},
	}}
	handler := newTestHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1?user_id=u1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"s1"}, service.deleted)
}

func TestHandleDeleteEverything(t *testing.T) {
	service := &fakeService{}
	handler := newTestHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/admin/sessions", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, service.wipedAll)
}

func TestHandleDashboard(t *testing.T) {
	handler := newTestHandler(&fakeService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dashboard chatsvc.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dashboard))
	require.Equal(t, 1, dashboard.TotalUsers)
}

func TestHandleListTools(t *testing.T) {
	discovery := &fakeDiscovery{listings: []mcpcontext.ServerToolListing{
		{Server: "forecast", Tools: []mcp.Tool{{Name: "get_weather", Description: "weather"}}},
		{Server: "broken", Err: errors.New("unreachable")},
	}}
	handler := newTestHandler(&fakeService{}, discovery)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/mcp/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listings []rpc.ServerTools
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 2)
	require.Equal(t, "get_weather", listings[0].Tools[0].Name)
	require.Equal(t, "unreachable", listings[1].Error)
}

func TestHandleInfo(t *testing.T) {
	handler := newTestHandler(&fakeService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "primary")
}
