package chat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chatloom/chatloom/internal/memory"
)

// activeWindow is how recently a user must have chatted to count as active.
const activeWindow = 24 * time.Hour

// AnswerPointer locates the most recent assistant reply in a session.
type AnswerPointer struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStats carries analytics for a single session.
type SessionStats struct {
	SessionID    string         `json:"session_id"`
	Title        string         `json:"title,omitempty"`
	MessageCount int            `json:"message_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	TokensUsed   int            `json:"tokens_used"`
	LatestAnswer *AnswerPointer `json:"latest_answer,omitempty"`
}

// UserStats aggregates one user's sessions.
type UserStats struct {
	UserID       string         `json:"user_id"`
	SessionCount int            `json:"session_count"`
	TotalTokens  int            `json:"total_tokens"`
	LastActive   *time.Time     `json:"last_active,omitempty"`
	Active       bool           `json:"is_active"`
	Sessions     []SessionStats `json:"sessions"`
}

// Dashboard is the admin analytics payload.
type Dashboard struct {
	TotalUsers    int         `json:"total_users"`
	ActiveUsers   int         `json:"active_users"`
	TotalSessions int         `json:"total_sessions"`
	TotalTokens   int         `json:"total_tokens"`
	Users         []UserStats `json:"users"`
}

// DashboardData computes analytics over every stored session.
func (s *Service) DashboardData(ctx context.Context) (Dashboard, error) {
	sessions, err := s.store.ListAllSessions(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load sessions for dashboard: %w", err)
	}

	byUser := map[string][]memory.Conversation{}
	for _, session := range sessions {
		byUser[session.UserID] = append(byUser[session.UserID], session)
	}

	threshold := time.Now().UTC().Add(-activeWindow)
	dashboard := Dashboard{TotalUsers: len(byUser)}

	userIDs := make([]string, 0, len(byUser))
	for userID := range byUser {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	for _, userID := range userIDs {
		userSessions := byUser[userID]
		stats := UserStats{UserID: userID, SessionCount: len(userSessions)}

		for _, session := range userSessions {
			tokens := sessionTokens(session.Messages)
			stats.TotalTokens += tokens
			dashboard.TotalSessions++

			if stats.LastActive == nil || session.UpdatedAt.After(*stats.LastActive) {
				updated := session.UpdatedAt
				stats.LastActive = &updated
			}

			stats.Sessions = append(stats.Sessions, SessionStats{
				SessionID:    session.SessionID,
				Title:        session.Title,
				MessageCount: session.MessageCount,
				CreatedAt:    session.CreatedAt,
				UpdatedAt:    session.UpdatedAt,
				TokensUsed:   tokens,
				LatestAnswer: latestAnswer(session),
			})
		}

		stats.Active = stats.LastActive != nil && !stats.LastActive.Before(threshold)
		if stats.Active {
			dashboard.ActiveUsers++
		}
		dashboard.TotalTokens += stats.TotalTokens
		dashboard.Users = append(dashboard.Users, stats)
	}

	return dashboard, nil
}

func sessionTokens(messages []memory.Message) int {
	total := 0
	for _, msg := range messages {
		total += approxTokens(msg.Content)
	}
	return total
}

func latestAnswer(session memory.Conversation) *AnswerPointer {
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == "assistant" {
			return &AnswerPointer{
				SessionID: session.SessionID,
				Timestamp: session.Messages[i].Timestamp,
			}
		}
	}
	return nil
}
