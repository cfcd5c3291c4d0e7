// File: internal/agent/llm_mind.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/config"
	"github.com/xkilldash9x/visionfill/internal/llmutil"
	"github.com/xkilldash9x/visionfill/internal/marker"
	"github.com/xkilldash9x/visionfill/internal/usage"
)

// Sorted keys keep the prompt stable between steps.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// defaultOracleTimeout bounds one Analyze call, retries included.
	defaultOracleTimeout = 3 * time.Minute
	parseFailureReason   = "failed to parse model response"
)

// LLMOracle implements schemas.Oracle with a vision model. It builds the
// prompt, parses the JSON decision and records token usage.
type LLMOracle struct {
	client  schemas.LLMClient
	cfg     config.LLMConfig
	usage   *usage.Tracker
	logger  *zap.Logger
	timeout time.Duration
}

var _ schemas.Oracle = (*LLMOracle)(nil)

// NewLLMOracle creates an oracle over client. tracker may be nil.
func NewLLMOracle(client schemas.LLMClient, cfg config.LLMConfig, tracker *usage.Tracker, logger *zap.Logger) *LLMOracle {
	o := &LLMOracle{
		client:  client,
		cfg:     cfg,
		usage:   tracker,
		logger:  logger.Named("llm_oracle"),
		timeout: defaultOracleTimeout,
	}
	o.logger.Info("LLMOracle initialized", zap.String("provider", string(cfg.Provider)), zap.String("model", cfg.Model))
	return o
}

// Analyze asks the model for the next decision. Model and parse failures
// come back as an error-status Decision; only cancellation of ctx is
// returned as an error.
func (o *LLMOracle) Analyze(ctx context.Context, obs schemas.Observation) (decision schemas.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic recovered during oracle call",
				zap.Any("panic_value", r),
				zap.Stack("stack"),
			)
			decision, err = schemas.ErrorDecision("oracle panicked"), nil
		}
	}()

	userPrompt, err := o.generateUserPrompt(obs)
	if err != nil {
		return schemas.ErrorDecision(err.Error()), nil
	}

	apiCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			Temperature:     float64(o.cfg.Temperature),
			MaxTokens:       o.cfg.MaxTokens,
		},
	}
	if len(obs.Screenshot) > 0 {
		req.Images = []schemas.ImagePart{{MIMEType: "image/jpeg", Data: obs.Screenshot}}
	}

	resp, err := o.client.Generate(apiCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return schemas.Decision{}, ctx.Err()
		}
		o.logger.Error("LLM generation failed", zap.Int("step", obs.Step), zap.Error(err))
		return schemas.ErrorDecision(fmt.Sprintf("model request failed: %v", err)), nil
	}

	parsed, parseErr := llmutil.ParseJSONResponse[schemas.Decision](resp.Text)
	if parseErr != nil {
		o.logger.Warn("Failed to parse model response",
			zap.Int("step", obs.Step),
			zap.String("raw_response", resp.Text),
			zap.Error(parseErr))
		o.recordUsage(obs.Step, "", resp)
		return schemas.ErrorDecision(parseFailureReason), nil
	}

	decision = normalizeDecision(*parsed)
	o.recordUsage(obs.Step, string(decision.Action.Kind), resp)
	return decision, nil
}

func (o *LLMOracle) recordUsage(step int, action string, resp *schemas.GenerationResponse) {
	if o.usage == nil {
		return
	}
	u := o.usage.Record(step, action, resp.Model, resp.PromptTokens, resp.CompletionTokens)
	o.logger.Debug("Recorded token usage",
		zap.Int("step", step),
		zap.Int("prompt_tokens", u.PromptTokens),
		zap.Int("completion_tokens", u.CompletionTokens),
		zap.Float64("cost_usd", u.Cost))
}

// normalizeDecision tolerates casing and whitespace drift in the enums.
// An unknown action kind is kept as-is so the router can reject it.
func normalizeDecision(d schemas.Decision) schemas.Decision {
	d.Status = schemas.DecisionStatus(strings.ToLower(strings.TrimSpace(string(d.Status))))
	if kind, err := schemas.ParseActionKind(string(d.Action.Kind)); err == nil {
		d.Action.Kind = kind
	}
	d.Action.Label = strings.TrimSpace(d.Action.Label)
	return d
}

// systemPrompt frames the model as a form-filling operator.
const systemPrompt = `You are a UI automation agent that fills in job applications.
You look at a screenshot of a web page and decide the single next action to take.
Respond with one JSON object and nothing else: no markdown, no commentary outside the JSON.
Work methodically and perform exactly ONE action per response.`

const actionKinds = `"fill" | "click" | "select" | "radio" | "check" | "upload_resume" | "upload_cover_letter" | "upload" | "scroll_down" | "scroll_up" | "wait"`

// generateUserPrompt builds the per-step prompt. The marked variant asks
// for element ids from the numbered overlays.
func (o *LLMOracle) generateUserPrompt(obs schemas.Observation) (string, error) {
	profileJSON, err := json.MarshalIndent(obs.Profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile: %w", err)
	}

	historySection := ""
	if len(obs.History) > 0 {
		historyJSON, err := json.Marshal(obs.History)
		if err != nil {
			return "", fmt.Errorf("failed to marshal action history: %w", err)
		}
		historySection = "\nRECENT ACTIONS:\n" + string(historyJSON) + "\n"
	}

	if obs.Marked && len(obs.Markers) > 0 {
		return fmt.Sprintf(`Analyze this job application page. Interactive elements carry RED NUMBERED BOXES.

APPLICANT DATA:
%s
%s
%s

TASK:
1. Identify the current page state.
2. Pick the numbered element that needs interaction next.
3. Decide the action to perform on it.

RULES:
- Reference elements by their NUMBER in "element_id".
- Interact with ONE numbered element at a time.
- When typing, give the exact text in "value".
- Radio questions: use "radio" with the option text as "value".
- Cover letter file uploads: use "upload_cover_letter".
- If what you need is not marked, scroll.
- On a success or confirmation page set "status" to "completed".

OUTPUT FORMAT (strict JSON):
{
  "status": "processing" | "completed" | "error",
  "page_state": "description of the current page",
  "reasoning": "what you see and which numbered element you target",
  "action": {
    "type": %s,
    "element_id": 5,
    "target_label": "what this element is for",
    "value": "text to enter, option to select, or radio option text",
    "confidence": 0.0
  }
}`, profileJSON, historySection, marker.Summary(obs.Markers), actionKinds), nil
	}

	return fmt.Sprintf(`Analyze this job application page screenshot and decide the next action.

APPLICANT DATA:
%s
%s
TASK:
1. Identify the current page state (for example "Personal Info", "Work Experience", "Review", "Confirmation").
2. Find the NEXT unfilled field or required action.
3. Map it to the applicant data.
4. Return one structured action.

RULES:
- Perform ONE action at a time.
- Text fields: give the exact value to fill.
- Dropdowns: use "select" with the option text as "value".
- Radio questions (e.g. "How did you hear about us?"): use "radio" with the option text as "value".
- Checkboxes: use "check".
- Resume file inputs: use "upload_resume". Cover letter file inputs ("Attach", "Upload"): use "upload_cover_letter", never "fill".
- When every field is filled and you see "Submit" or "Apply": click it.
- On a success or confirmation page set "status" to "completed".
- If the page is in an error state you cannot recover from, set "status" to "error".

OUTPUT FORMAT (strict JSON):
{
  "status": "processing" | "completed" | "error",
  "page_state": "description of the current page",
  "reasoning": "what you see and why you chose this action",
  "action": {
    "type": %s,
    "target_label": "visible label or button text",
    "target_type": "input" | "button" | "select" | "checkbox" | "radio" | "file" | "link",
    "value": "text to enter, option to select, or radio option text",
    "confidence": 0.0
  }
}`, profileJSON, historySection, actionKinds), nil
}
