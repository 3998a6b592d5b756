package provider

import (
	"context"
	"strings"
)

// Tier classifies a prompt's expected complexity for model routing.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// RoutingClassifier assigns a prompt to a complexity tier so the caller
// can select a cheaper or stronger model before opening the stream.
type RoutingClassifier interface {
	Classify(ctx context.Context, text string) (Tier, error)
}

// highSignalKeywords nudge a prompt toward High: broad, multi-file, or
// architectural work tends to need the strongest model.
var highSignalKeywords = []string{
	"refactor", "architecture", "migrate", "redesign", "rearchitect",
	"concurren", "distributed", "security", "race condition", "deadlock",
}

// lowSignalKeywords nudge a prompt toward Low: small, mechanical edits.
var lowSignalKeywords = []string{
	"typo", "rename", "comment", "whitespace", "formatting",
}

// DefaultRoutingClassifier implements the keyword+length-boost heuristic:
// a prompt over 200 words gets +2 toward High, over 80 words gets +1;
// keyword hits add or subtract a point each; ties resolve to Medium.
type DefaultRoutingClassifier struct{}

func (DefaultRoutingClassifier) Classify(_ context.Context, text string) (Tier, error) {
	words := len(strings.Fields(text))
	lower := strings.ToLower(text)

	score := 0
	for _, kw := range highSignalKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	for _, kw := range lowSignalKeywords {
		if strings.Contains(lower, kw) {
			score--
		}
	}

	switch {
	case words > 200:
		score += 2
	case words > 80:
		score++
	}

	switch {
	case score >= 2:
		return TierHigh, nil
	case score <= -1:
		return TierLow, nil
	default:
		return TierMedium, nil
	}
}
