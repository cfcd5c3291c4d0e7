// Package usage accounts for model tokens and their estimated cost over a
// run.
package usage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Price is USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// DefaultPricing covers the vision models the agent is normally run with.
// Model names match by longest prefix, so dated snapshots resolve to their
// family.
var DefaultPricing = map[string]Price{
	"gpt-4o-mini":      {Input: 0.15, Output: 0.60},
	"gpt-4o":           {Input: 2.50, Output: 10.00},
	"gpt-4.1-mini":     {Input: 0.40, Output: 1.60},
	"gpt-4.1":          {Input: 2.00, Output: 8.00},
	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
	"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
}

// StepUsage is the token usage of one oracle call.
type StepUsage struct {
	Step             int       `json:"step"`
	Action           string    `json:"action"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Cost             float64   `json:"cost_usd"`
	At               time.Time `json:"at"`
}

// Summary aggregates a run.
type Summary struct {
	Model            string        `json:"model"`
	Steps            int           `json:"steps"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	InputCost        float64       `json:"input_cost_usd"`
	OutputCost       float64       `json:"output_cost_usd"`
	TotalCost        float64       `json:"estimated_cost_usd"`
	AvgTokensPerStep int           `json:"avg_tokens_per_step"`
	Duration         time.Duration `json:"duration"`
	// Priced is false when the model has no pricing entry and costs are zero.
	Priced bool `json:"priced"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	model   string
	pricing map[string]Price
	steps   []StepUsage
	start   time.Time
	now     func() time.Time
}

// NewTracker starts tracking for model. A nil pricing table uses
// DefaultPricing.
func NewTracker(model string, pricing map[string]Price) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing
	}
	t := &Tracker{model: model, pricing: pricing, now: time.Now}
	t.start = t.now()
	return t
}

// PriceFor returns the price for model by longest matching prefix.
func (t *Tracker) PriceFor(model string) (Price, bool) {
	model = strings.ToLower(model)
	keys := make([]string, 0, len(t.pricing))
	for k := range t.pricing {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		if strings.HasPrefix(model, k) {
			return t.pricing[k], true
		}
	}
	return Price{}, false
}

// Record adds one call. An empty model falls back to the tracker's model.
func (t *Tracker) Record(step int, action, model string, promptTokens, completionTokens int) StepUsage {
	if model == "" {
		model = t.model
	}
	price, _ := t.PriceFor(model)
	u := StepUsage{
		Step:             step,
		Action:           action,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Cost:             cost(promptTokens, price.Input) + cost(completionTokens, price.Output),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	u.At = t.now()
	t.steps = append(t.steps, u)
	return u
}

// Steps returns a copy of the recorded calls.
func (t *Tracker) Steps() []StepUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StepUsage, len(t.steps))
	copy(out, t.steps)
	return out
}

// Summary totals every recorded call.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, priced := t.PriceFor(t.model)
	s := Summary{Model: t.model, Steps: len(t.steps), Duration: t.now().Sub(t.start), Priced: priced}
	for _, u := range t.steps {
		s.PromptTokens += u.PromptTokens
		s.CompletionTokens += u.CompletionTokens
		price, _ := t.PriceFor(u.Model)
		s.InputCost += cost(u.PromptTokens, price.Input)
		s.OutputCost += cost(u.CompletionTokens, price.Output)
	}
	s.TotalTokens = s.PromptTokens + s.CompletionTokens
	s.TotalCost = s.InputCost + s.OutputCost
	if s.Steps > 0 {
		s.AvgTokensPerStep = s.TotalTokens / s.Steps
	}
	return s
}

// Fields renders the summary for a structured log line.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.String("model", s.Model),
		zap.Int("llm_calls", s.Steps),
		zap.Int("prompt_tokens", s.PromptTokens),
		zap.Int("completion_tokens", s.CompletionTokens),
		zap.Int("total_tokens", s.TotalTokens),
		zap.Int("avg_tokens_per_step", s.AvgTokensPerStep),
		zap.Float64("estimated_cost_usd", s.TotalCost),
		zap.Bool("priced", s.Priced),
		zap.Duration("duration", s.Duration),
	}
}

func cost(tokens int, perMillion float64) float64 {
	return float64(tokens) * perMillion / 1_000_000
}
