package sentiment

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const promptTemplate = `You are a sentiment analysis expert. Analyze the sentiment of the following citizen feedback and provide a sentiment (positive, negative, or neutral), a confidence score (0-1), and a brief reason for your analysis.

Feedback: %s

Respond only with a JSON object of the form {"sentiment": "...", "confidence": 0.0, "reason": "..."}.`

// LLMClassifier asks a chat model for a JSON verdict and validates it.
type LLMClassifier struct {
	model     llms.Model
	modelName string
}

func NewLLMClassifier(model llms.Model, modelName string) *LLMClassifier {
	return &LLMClassifier{model: model, modelName: modelName}
}

// NewOpenAIClassifier talks to any OpenAI-compatible endpoint.
func NewOpenAIClassifier(baseURL, modelName, apiKey string) (*LLMClassifier, error) {
	if apiKey == "" {
		// self-hosted endpoints ignore the token, the client still wants one
		apiKey = "unused"
	}
	opts := []openai.Option{openai.WithModel(modelName), openai.WithToken(apiKey)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return NewLLMClassifier(llm, modelName), nil
}

func (c *LLMClassifier) ModelName() string {
	return c.modelName
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (Result, error) {
	reply, err := llms.GenerateFromSinglePrompt(ctx, c.model, fmt.Sprintf(promptTemplate, text),
		llms.WithTemperature(0),
		llms.WithMaxTokens(256),
	)
	if err != nil {
		return Result{}, fmt.Errorf("classify sentiment: %w", err)
	}
	return ParseResponse(reply)
}
