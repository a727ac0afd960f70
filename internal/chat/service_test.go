package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/internal/config"
	"github.com/chatloom/chatloom/internal/llm"
	"github.com/chatloom/chatloom/internal/llm/mock"
	"github.com/chatloom/chatloom/internal/memory"
)

type staticCollector struct {
	context string
	prompts []string
}

func (c *staticCollector) Collect(_ context.Context, prompt, _ string) string {
	c.prompts = append(c.prompts, prompt)
	return c.context
}

func testConfig() *config.Config {
	return &config.Config{
		Strategy: config.StrategyConfig{DefaultModel: "primary"},
		Chat:     config.ChatConfig{MaxTokens: 256, Temperature: 0.2, TitleMaxChars: 60},
		Memory:   config.MemoryConfig{RecallMessages: 5},
	}
}

func testService(t *testing.T, provider llm.Provider, collector ContextCollector) (*Service, *memory.Store) {
	t.Helper()
	store, err := memory.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := llm.NewRegistry()
	registry.RegisterProvider("mock", provider)
	registry.RegisterModel("primary", llm.ModelRoute{Provider: "mock", Model: "mock-1"}, true)

	return NewService(testConfig(), registry, store, collector, nil, nil), store
}

func fixedAnswer(answer string) *mock.Provider {
	return &mock.Provider{
		ChatFn: func(_ context.Context, _ llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{
				Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: answer},
				Model:   "mock-1",
			}, nil
		},
	}
}

func TestChatGeneratesIdentifiers(t *testing.T) {
	svc, _ := testService(t, fixedAnswer("hello back"), nil)

	result, err := svc.Chat(context.Background(), "", "", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, result.UserID)
	require.NotEmpty(t, result.SessionID)
	require.Equal(t, "hello back", result.Answer)
	require.Len(t, result.Components, 1)
	require.Equal(t, "text", result.Components[0].Type)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	svc, _ := testService(t, fixedAnswer("x"), nil)
	_, err := svc.Chat(context.Background(), "u1", "s1", "   ")
	require.Error(t, err)
}

func TestChatPersistsInteractionAndTitle(t *testing.T) {
	svc, store := testService(t, fixedAnswer("the answer"), nil)

	_, err := svc.Chat(context.Background(), "u1", "s1", "what is the question")
	require.NoError(t, err)

	session, err := store.GetSession(context.Background(), "u1", "s1")
	require.NoError(t, err)
	require.Equal(t, 2, session.MessageCount)
	require.Equal(t, "what is the question", session.Title)
	require.Equal(t, "the answer", session.Messages[1].Content)
	require.NotEmpty(t, session.Messages[1].Components)
}

func TestChatTitleTruncated(t *testing.T) {
	svc, store := testService(t, fixedAnswer("ok"), nil)
	long := strings.Repeat("a", 80)

	_, err := svc.Chat(context.Background(), "u1", "s1", long)
	require.NoError(t, err)

	session, err := store.GetSession(context.Background(), "u1", "s1")
	require.NoError(t, err)
	require.Len(t, session.Title, 60)
}

func TestChatTitleOnlySetOnFirstExchange(t *testing.T) {
	svc, store := testService(t, fixedAnswer("ok"), nil)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "u1", "s1", "first question")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, "u1", "s1", "second question")
	require.NoError(t, err)

	session, err := store.GetSession(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Equal(t, "first question", session.Title)
	require.Equal(t, 4, session.MessageCount)
}

func TestChatStructuredAnswer(t *testing.T) {
	table := "| Name | Age |\n| --- | --- |\n| Ada | 36 |"
	svc, _ := testService(t, fixedAnswer(table), nil)

	result, err := svc.Chat(context.Background(), "u1", "s1", "show me the table")
	require.NoError(t, err)
	require.Equal(t, "table", string(result.ContentType))
	require.Equal(t, "table", result.Components[0].Type)
}

func TestChatInjectsToolContext(t *testing.T) {
	var captured string
	provider := &mock.Provider{
		ChatFn: func(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			captured = req.Messages[0].Content
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: "ok"}}, nil
		},
	}
	collector := &staticCollector{context: "Tool get_weather: sunny"}
	svc, _ := testService(t, provider, collector)

	_, err := svc.Chat(context.Background(), "u1", "s1", "what's the weather")
	require.NoError(t, err)
	require.Contains(t, captured, "Verified MCP data:\nTool get_weather: sunny")
	require.Equal(t, []string{"what's the weather"}, collector.prompts)
}

func TestChatInjectsRecalledHistory(t *testing.T) {
	var captured []string
	provider := &mock.Provider{
		ChatFn: func(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			captured = append(captured, req.Messages[0].Content)
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: "bread needs yeast"}}, nil
		},
	}
	svc, _ := testService(t, provider, nil)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "u1", "s1", "how do I bake bread")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, "u1", "s1", "more about bread please")
	require.NoError(t, err)

	require.Len(t, captured, 2)
	require.Contains(t, captured[0], "Conversation context: <none>")
	require.Contains(t, captured[1], "Conversation context:\nUser: how do I bake bread")
}

func TestChatFallbackModel(t *testing.T) {
	failing := &mock.Provider{
		NameValue: "broken",
		ChatFn: func(_ context.Context, _ llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, errors.New("unreachable")
		},
	}

	store, err := memory.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := llm.NewRegistry()
	registry.RegisterProvider("broken", failing)
	registry.RegisterProvider("mock", fixedAnswer("fallback answer"))
	registry.RegisterModel("primary", llm.ModelRoute{Provider: "broken", Model: "b-1"}, true)
	registry.RegisterModel("backup", llm.ModelRoute{Provider: "mock", Model: "mock-1"}, false)

	cfg := testConfig()
	cfg.Strategy.Fallbacks = []string{"backup"}
	svc := NewService(cfg, registry, store, nil, nil, nil)

	result, err := svc.Chat(context.Background(), "u1", "s1", "hello")
	require.NoError(t, err)
	require.Equal(t, "fallback answer", result.Answer)
}

func TestChatAllModelsFail(t *testing.T) {
	failing := &mock.Provider{
		ChatFn: func(_ context.Context, _ llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, errors.New("unreachable")
		},
	}
	svc, store := testService(t, failing, nil)

	_, err := svc.Chat(context.Background(), "u1", "s1", "hello")
	require.Error(t, err)

	_, err = store.GetSession(context.Background(), "u1", "s1")
	require.ErrorIs(t, err, memory.ErrSessionNotFound)
}

func TestComposeSystemMessage(t *testing.T) {
	out := composeSystemMessage("base prompt", "", "")
	require.Equal(t, "base prompt\nConversation context: <none>\nVerified MCP data: <none>", out)

	out = composeSystemMessage("", "history", "tools")
	require.True(t, strings.HasPrefix(out, DefaultSystemPrompt))
	require.Contains(t, out, "\nConversation context:\nhistory")
	require.Contains(t, out, "\nVerified MCP data:\ntools")
}

func TestDashboardData(t *testing.T) {
	svc, _ := testService(t, fixedAnswer("four words in reply"), nil)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "u1", "s1", "two words")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, "u1", "s2", "three little words")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, "u2", "s3", "one")
	require.NoError(t, err)

	dashboard, err := svc.DashboardData(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, dashboard.TotalUsers)
	require.Equal(t, 2, dashboard.ActiveUsers)
	require.Equal(t, 3, dashboard.TotalSessions)
	require.Len(t, dashboard.Users, 2)

	first := dashboard.Users[0]
	require.Equal(t, "u1", first.UserID)
	require.Equal(t, 2, first.SessionCount)
	// "two words" + "four words in reply" and "three little words" + same reply.
	require.Equal(t, 13, first.TotalTokens)
	require.True(t, first.Active)
	require.NotNil(t, first.Sessions[0].LatestAnswer)
	require.Equal(t, dashboard.TotalTokens, first.TotalTokens+dashboard.Users[1].TotalTokens)
}

func TestServiceInfo(t *testing.T) {
	svc, _ := testService(t, fixedAnswer("x"), nil)
	info := svc.Info()
	require.Equal(t, "primary", info["model"])
	require.Equal(t, 256, info["max_tokens"])
}
