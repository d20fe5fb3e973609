// Package sentiment classifies free-text feedback as positive, negative or
// neutral through an external language model.
package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

type Label string

const (
	Positive Label = "Positive"
	Negative Label = "Negative"
	Neutral  Label = "Neutral"
)

var Labels = []Label{Positive, Negative, Neutral}

func ParseLabel(value string) (Label, bool) {
	value = strings.TrimSpace(value)
	for _, label := range Labels {
		if strings.EqualFold(value, string(label)) {
			return label, true
		}
	}
	return "", false
}

type Result struct {
	Sentiment  Label   `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classifier is a single-shot remote call. It may be slow and it may fail;
// callers bound it with a context deadline.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

var ErrInvalidResponse = errors.New("invalid classifier response")

// ParseResponse validates raw model output against the result schema:
// a JSON object (optionally fenced) with a known sentiment label, a numeric
// confidence in [0,1] and a string reason.
func ParseResponse(raw string) (Result, error) {
	body := extractObject(raw)
	if body == "" {
		return Result{}, fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}

	var reply struct {
		Sentiment  *string      `json:"sentiment"`
		Confidence *json.Number `json:"confidence"`
		Reason     *string      `json:"reason"`
	}
	decoder := json.NewDecoder(strings.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&reply); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if reply.Sentiment == nil || reply.Confidence == nil || reply.Reason == nil {
		return Result{}, fmt.Errorf("%w: missing field", ErrInvalidResponse)
	}

	label, ok := ParseLabel(*reply.Sentiment)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidResponse, *reply.Sentiment)
	}
	confidence, err := reply.Confidence.Float64()
	if err != nil || math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Result{}, fmt.Errorf("%w: confidence %q outside [0,1]", ErrInvalidResponse, reply.Confidence.String())
	}
	return Result{
		Sentiment:  label,
		Confidence: confidence,
		Reason:     strings.TrimSpace(*reply.Reason),
	}, nil
}

func extractObject(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
