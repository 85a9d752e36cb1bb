package genai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vocalhire/interviewd/internal/models"
)

// wireFeedback mirrors the JSON shape the scoring prompt requests. Both
// "rating" and "ratings" are accepted; models occasionally pluralize.
type wireFeedback struct {
	Rating                map[string]float64 `json:"rating"`
	Ratings               map[string]float64 `json:"ratings"`
	Summary               string             `json:"summary"`
	Recommendation        string             `json:"recommendation"`
	RecommendationMessage string             `json:"recommendationMessage"`
	Confidence            float64            `json:"confidence"`
}

type wireEnvelope struct {
	Feedback *wireFeedback `json:"feedback"`
}

// ParseFeedback extracts a FeedbackResult from model output. The output may
// wrap the JSON object in prose or code fences; the parser locates the
// outermost object and tolerates the feedback being enveloped or bare.
// Malformed output returns an error so the caller can fall back to defaults.
func ParseFeedback(content string) (*models.FeedbackResult, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in scorer output")
	}
	raw := content[start : end+1]

	var envelope wireEnvelope
	wire := &wireFeedback{}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Feedback != nil {
		wire = envelope.Feedback
	} else if err := json.Unmarshal([]byte(raw), wire); err != nil {
		return nil, fmt.Errorf("unmarshal scorer output failed: %w", err)
	}

	ratings := wire.Rating
	if len(ratings) == 0 {
		ratings = wire.Ratings
	}
	if len(ratings) == 0 && wire.Recommendation == "" {
		return nil, fmt.Errorf("scorer output carries neither ratings nor recommendation")
	}

	result := &models.FeedbackResult{
		Ratings:               make(map[string]int, len(ratings)),
		Summary:               wire.Summary,
		Recommendation:        normalizeRecommendation(wire.Recommendation),
		RecommendationMessage: wire.RecommendationMessage,
		Confidence:            clampInt(int(wire.Confidence), 0, models.MaxConfidenceValue),
	}
	for criterion, value := range ratings {
		result.Ratings[criterion] = clampInt(int(value), 0, models.MaxRatingValue)
	}
	// Missing criteria rate as zero rather than being absent.
	for _, criterion := range models.ScoringCriteria {
		if _, ok := result.Ratings[criterion]; !ok {
			result.Ratings[criterion] = 0
		}
	}
	return result, nil
}

func normalizeRecommendation(r string) models.Recommendation {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "yes":
		return models.RecommendationYes
	case "no":
		return models.RecommendationNo
	default:
		return models.RecommendationMaybe
	}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
