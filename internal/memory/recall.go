package memory

import (
	"regexp"
	"sort"
	"strings"
)

// Exchange pairs a user question with the assistant answer that followed it.
type Exchange struct {
	Question string
	Answer   string
	Score    float64
	order    int
}

// Recall ranks the session's past exchanges by token overlap with the prompt
// and returns the top limit of them, formatted as a context block in
// chronological order. Returns "" when nothing in the history is relevant.
func Recall(messages []Message, prompt string, limit int) string {
	if limit <= 0 {
		limit = 5
	}
	qTokens := tokenize(prompt)
	if len(qTokens) == 0 {
		return ""
	}

	var scored []Exchange
	for i, exchange := range pairExchanges(messages) {
		text := exchange.Question + " " + exchange.Answer
		score := overlapScore(qTokens, tokenize(text))
		if score <= 0 {
			continue
		}
		exchange.Score = score
		exchange.order = i
		scored = append(scored, exchange)
	}
	if len(scored) == 0 {
		return ""
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].order < scored[j].order
		}
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].order < scored[j].order })

	sections := make([]string, 0, len(scored))
	for _, exchange := range scored {
		sections = append(sections, "User: "+exchange.Question+"\nAssistant: "+exchange.Answer)
	}
	return strings.Join(sections, "\n\n")
}

// pairExchanges walks the history pairing each user message with the next
// assistant message. Unpaired trailing messages are dropped.
func pairExchanges(messages []Message) []Exchange {
	var exchanges []Exchange
	var pending *Message
	for i := range messages {
		msg := messages[i]
		switch msg.Role {
		case "user":
			pending = &messages[i]
		case "assistant":
			if pending != nil {
				exchanges = append(exchanges, Exchange{Question: pending.Content, Answer: msg.Content})
				pending = nil
			}
		}
	}
	return exchanges
}

func overlapScore(query, doc []string) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(doc))
	for _, t := range doc {
		seen[t] = struct{}{}
	}
	var overlap int
	for _, q := range query {
		if _, ok := seen[q]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(query))
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

func tokenize(s string) []string {
	matches := tokenRe.FindAllString(strings.ToLower(s), -1)
	if len(matches) == 0 {
		return nil
	}
	return matches
}
