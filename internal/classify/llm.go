package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/tidymail/tidymail/internal/email"
)

const llmSystemPrompt = `You label emails for an automated mail agent.
You will receive the allowed label names and one email. Reply with a JSON
array containing the labels that apply, for example ["Work","Finance"].
Only use labels from the allowed list. Reply with [] when none apply.`

// maxLLMBodyBytes caps how much of the body is sent to the model.
const maxLLMBodyBytes = 2000

// LLMClassifier asks an OpenAI-compatible model to pick labels from the
// configured set. It is the optional secondary classification stage
// behind the same interface as the rule matcher.
type LLMClassifier struct {
	client *openai.Client
	model  string
	labels []string
	log    zerolog.Logger
}

// NewLLMClassifier creates an LLM-backed classifier restricted to the
// given label names. An empty baseURL uses the OpenAI default.
func NewLLMClassifier(apiKey, baseURL, model string, labels []string, logger zerolog.Logger) *LLMClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		labels: labels,
		log:    logger.With().Str("component", "llm-classifier").Logger(),
	}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, e *email.Email) ([]string, error) {
	if len(c.labels) == 0 {
		return nil, nil
	}

	body := e.Body
	if len(body) > maxLLMBodyBytes {
		body = strings.ToValidUTF8(body[:maxLLMBodyBytes], "")
	}
	prompt := fmt.Sprintf("Allowed labels: %s\n\nFrom: %s\nSubject: %s\n\n%s",
		strings.Join(c.labels, ", "), e.From, e.Subject, body)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	labels := c.parseLabels(resp.Choices[0].Message.Content)
	c.log.Debug().Str("email_id", e.ID).Strs("labels", labels).Msg("Model suggested labels")
	return labels, nil
}

// parseLabels extracts the allowed labels named in the model output.
// The model is asked for a JSON array; anything else degrades to a
// comma-separated scan. Names outside the allowed set are dropped.
func (c *LLMClassifier) parseLabels(content string) []string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`")

	var names []string
	if err := json.Unmarshal([]byte(content), &names); err != nil {
		names = strings.Split(content, ",")
	}

	allowed := make(map[string]string, len(c.labels))
	for _, l := range c.labels {
		allowed[strings.ToLower(l)] = l
	}

	var out []string
	seen := make(map[string]struct{})
	for _, n := range names {
		n = strings.ToLower(strings.Trim(strings.TrimSpace(n), `"`))
		canonical, ok := allowed[n]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}
