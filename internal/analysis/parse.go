package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"NewsIngestor/internal/domain"
)

const (
	defaultSummary = "No summary."
	defaultScore   = 50
)

type enrichmentPayload struct {
	Summary        *string      `json:"summary"`
	Category       *string      `json:"category"`
	ViabilityScore *json.Number `json:"viability_score"`
}

type quotePayload struct {
	Found  bool   `json:"found"`
	Text   string `json:"text"`
	Author string `json:"author"`
	Role   string `json:"role"`
}

// stripCodeFence removes ```json / ``` markers models like to wrap JSON in.
func stripCodeFence(response string) string {
	cleaned := strings.TrimSpace(response)
	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = strings.TrimPrefix(cleaned, "```json")
	case strings.HasPrefix(cleaned, "```"):
		cleaned = strings.TrimPrefix(cleaned, "```")
	default:
		return cleaned
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// parseEnrichment decodes a provider answer, filling missing keys with defaults.
func parseEnrichment(response string) (domain.Enrichment, error) {
	var payload enrichmentPayload
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &payload); err != nil {
		return domain.Enrichment{}, fmt.Errorf("decode enrichment: %w", err)
	}

	out := domain.Enrichment{
		Summary:        defaultSummary,
		Category:       domain.CategoryResearch,
		ViabilityScore: defaultScore,
	}
	if payload.Summary != nil {
		out.Summary = *payload.Summary
	}
	if payload.Category != nil {
		out.Category = domain.ParseCategory(strings.TrimSpace(*payload.Category))
	}
	if payload.ViabilityScore != nil {
		score, err := parseScore(*payload.ViabilityScore)
		if err != nil {
			return domain.Enrichment{}, err
		}
		out.ViabilityScore = score
	}
	return out, nil
}

func parseScore(n json.Number) (int, error) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid viability_score %q: %w", n, err)
	}
	score := int(math.Round(f))
	return min(max(score, 0), 100), nil
}

// parseQuote returns nil for {"found": false}, incomplete answers and garbage.
func parseQuote(response string) *domain.QuoteCandidate {
	var payload quotePayload
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &payload); err != nil {
		return nil
	}
	text := strings.TrimSpace(payload.Text)
	author := strings.TrimSpace(payload.Author)
	if !payload.Found || text == "" || author == "" {
		return nil
	}
	return &domain.QuoteCandidate{
		Text:   text,
		Author: author,
		Role:   strings.TrimSpace(payload.Role),
	}
}

// parsePoll decodes a poll draft. Votes always start at zero.
func parsePoll(response string) (domain.PollDraft, error) {
	var draft domain.PollDraft
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &draft); err != nil {
		return domain.PollDraft{}, fmt.Errorf("decode poll: %w", err)
	}
	draft.Question = strings.TrimSpace(draft.Question)
	if draft.Question == "" {
		return domain.PollDraft{}, errors.New("poll has no question")
	}

	options := make([]domain.PollOption, 0, len(draft.Options))
	for i, opt := range draft.Options {
		text := strings.TrimSpace(opt.Text)
		if text == "" {
			continue
		}
		id := strings.TrimSpace(opt.ID)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		options = append(options, domain.PollOption{ID: id, Text: text})
	}
	if len(options) < 2 {
		return domain.PollDraft{}, fmt.Errorf("poll needs at least 2 options, got %d", len(options))
	}
	draft.Options = options
	return draft, nil
}

func skipped(reason string) domain.Enrichment {
	return domain.Enrichment{
		Summary:        "AI Processing Skipped: " + reason,
		Category:       domain.CategoryResearch,
		ViabilityScore: 0,
	}
}
