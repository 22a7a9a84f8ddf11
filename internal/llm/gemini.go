// GeminiProvider adapts the teacher's gemini.Client (internal/clients/gemini)
// into a llm.Provider: GenerateContent is reused verbatim for the network
// call; the stock-analysis prompt builder is replaced with a plan/step
// prompt builder and the plain-text response is parsed into the Task/Plan
// shapes the background-job handlers operate on.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// GeminiProvider is the one concrete, pack-grounded Provider implementation.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// GeminiOption configures a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithModel overrides the default model id.
func WithModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithLogger attaches a logger for diagnostic messages.
func WithLogger(logger *common.Logger) GeminiOption {
	return func(p *GeminiProvider) { p.logger = logger }
}

// DefaultModel is used when no WithModel option is supplied.
const DefaultModel = "gemini-3-flash-preview"

// NewGeminiProvider constructs a GeminiProvider authenticated with apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	p := &GeminiProvider{client: client, model: DefaultModel, logger: common.NewSilentLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GeneratePlan asks the model to produce a structured Plan for the given
// issue, parsing its JSON response into models.Plan.
func (p *GeminiProvider) GeneratePlan(ctx context.Context, req PlanRequest) (models.Plan, error) {
	p.logger.Debug().Str("model", p.model).Str("repo", req.Owner+"/"+req.Repo).Msg("generating plan")

	prompt := buildPlanPrompt(req)
	text, err := p.generateContent(ctx, prompt)
	if err != nil {
		return models.Plan{}, err
	}

	var plan models.Plan
	if err := json.Unmarshal([]byte(extractJSON(text)), &plan); err != nil {
		return models.Plan{}, fmt.Errorf("parse plan response: %w", err)
	}
	return plan, nil
}

// ExecuteStep asks the model to carry out one plan step and report whether
// it succeeded.
func (p *GeminiProvider) ExecuteStep(ctx context.Context, req ExecRequest) (StepResult, error) {
	p.logger.Debug().Str("model", p.model).Str("step", req.Step.ID).Msg("executing plan step")

	prompt := buildExecPrompt(req)
	text, err := p.generateContent(ctx, prompt)
	if err != nil {
		return StepResult{}, err
	}

	var result StepResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		return StepResult{}, fmt.Errorf("parse step result: %w", err)
	}
	return result, nil
}

func (p *GeminiProvider) generateContent(ctx context.Context, prompt string) (string, error) {
	contents := genai.Text(prompt)
	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return extractTextFromResponse(result)
}

func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// extractJSON strips a leading/trailing markdown code fence, if present,
// since models commonly wrap JSON output in ```json ... ``` blocks.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func buildPlanPrompt(req PlanRequest) string {
	return fmt.Sprintf(`You are planning a code change for GitHub issue %s/%s#%d.

Title: %s

Body:
%s

Respond with ONLY a JSON object matching this shape:
{"problem_summary": string, "constraints": [string], "steps": [{"id": string, "title": string, "details": string}], "checklist": [string], "file_targets": [string]}`,
		req.Owner, req.Repo, req.IssueNumber, req.IssueTitle, req.IssueBody)
}

func buildExecPrompt(req ExecRequest) string {
	return fmt.Sprintf(`You are executing step %q of a plan for %s/%s: %s

Step details: %s

Respond with ONLY a JSON object matching this shape:
{"succeeded": bool, "summary": string}`,
		req.Step.Title, req.Owner, req.Repo, req.Plan.ProblemSummary, req.Step.Details)
}
