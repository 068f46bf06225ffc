package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/autonomos/orchestrator/domain"
)

// LLMClassifier classifies events through an OpenAI-compatible chat
// completion endpoint. Transport failures and malformed payloads both
// surface as domain.ErrClassification.
type LLMClassifier struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewLLMClassifier creates a classifier against the given base URL.
func NewLLMClassifier(baseURL, apiKey, model string, timeout time.Duration) *LLMClassifier {
	return &LLMClassifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are an operations manager for a small business.
Analyze the event against the business state and respond ONLY with a JSON
object containing these fields:
  "business_impact": "high" | "medium" | "low"
  "urgency": "immediate" | "24h" | "48h" | "week"
  "cascading_effects": list of short strings
  "recommended_actions": ordered list of action identifiers, most important first`

// Classify sends the event and a snapshot excerpt to the model and parses
// the strict JSON response.
func (c *LLMClassifier) Classify(ctx context.Context, event domain.Event, snap *domain.BusinessSnapshot) (domain.Classification, error) {
	prompt := fmt.Sprintf(`Event: %s
Subject: %s
Measurement: %.2f
Detail: %s
Severity: %s

Business state:
- Cash balance: $%.2f
- Tracked products: %d
- Pending orders: %d`,
		event.Kind, event.SubjectID, event.Measurement, event.Detail, event.Severity,
		snap.CashBalance, len(snap.InventoryLevels), len(snap.PendingOrders))

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		// Low temperature for consistent decisions.
		Temperature: 0.1,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: marshal request: %v", domain.ErrClassification, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: create request: %v", domain.ErrClassification, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.Classification{}, fmt.Errorf("%w: classifier returned status %d: %s", domain.ErrClassification, resp.StatusCode, string(respBody))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: decode response: %v", domain.ErrClassification, err)
	}
	if len(completion.Choices) == 0 {
		return domain.Classification{}, fmt.Errorf("%w: empty completion", domain.ErrClassification)
	}

	return parseClassification(completion.Choices[0].Message.Content)
}

// parseClassification parses the model's JSON payload, tolerating markdown
// code fences around it.
func parseClassification(content string) (domain.Classification, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var c domain.Classification
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: malformed payload: %v", domain.ErrClassification, err)
	}
	if !domain.ValidImpact(c.BusinessImpact) {
		return domain.Classification{}, fmt.Errorf("%w: unrecognized business_impact %q", domain.ErrClassification, c.BusinessImpact)
	}
	if !domain.ValidUrgency(c.Urgency) {
		return domain.Classification{}, fmt.Errorf("%w: unrecognized urgency %q", domain.ErrClassification, c.Urgency)
	}
	return c, nil
}
