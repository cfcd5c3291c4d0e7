package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/config"
	"github.com/xkilldash9x/visionfill/internal/mocks"
	"github.com/xkilldash9x/visionfill/internal/usage"
)

func setupOracle(t *testing.T, tracker *usage.Tracker) (*LLMOracle, *mocks.MockLLMClient) {
	t.Helper()
	client := new(mocks.MockLLMClient)
	cfg := config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o", Temperature: 0.1, MaxTokens: 1000}
	return NewLLMOracle(client, cfg, tracker, zaptest.NewLogger(t)), client
}

func testObservation() schemas.Observation {
	return schemas.Observation{
		Step:       2,
		Screenshot: []byte{0xff, 0xd8, 0xff},
		Profile:    map[string]any{"email": "ada@example.com", "name": "Ada Lovelace"},
	}
}

func TestLLMOracle_ParsesFencedDecision(t *testing.T) {
	tracker := usage.NewTracker("gpt-4o", nil)
	oracle, client := setupOracle(t, tracker)

	raw := "Here you go:\n```json\n" + `{
  "status": "Processing",
  "page_state": "Personal Info",
  "reasoning": "Email is empty",
  "action": {"type": " FILL ", "target_label": " Email ", "value": "ada@example.com", "confidence": 0.9}
}` + "\n```"
	client.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Options.ForceJSONFormat &&
			req.Options.MaxTokens == 1000 &&
			len(req.Images) == 1 && req.Images[0].MIMEType == "image/jpeg" &&
			req.SystemPrompt == systemPrompt
	})).Return(&schemas.GenerationResponse{Text: raw, Model: "gpt-4o", PromptTokens: 1200, CompletionTokens: 80}, nil).Once()

	d, err := oracle.Analyze(context.Background(), testObservation())
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusProcessing, d.Status)
	assert.Equal(t, "Personal Info", d.PageState)
	assert.Equal(t, schemas.ActionFill, d.Action.Kind)
	assert.Equal(t, "Email", d.Action.Label)
	assert.Equal(t, "ada@example.com", d.Action.Value)

	steps := tracker.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, 2, steps[0].Step)
	assert.Equal(t, "fill", steps[0].Action)
	assert.Equal(t, 1200, steps[0].PromptTokens)
	assert.Greater(t, steps[0].Cost, 0.0)
	client.AssertExpectations(t)
}

func TestLLMOracle_UnknownKindIsPassedThrough(t *testing.T) {
	oracle, client := setupOracle(t, nil)
	client.On("Generate", mock.Anything, mock.Anything).
		Return(&schemas.GenerationResponse{Text: `{"status":"processing","action":{"type":"hover","target_label":"Menu"}}`}, nil).Once()

	d, err := oracle.Analyze(context.Background(), testObservation())
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionKind("hover"), d.Action.Kind)
}

func TestLLMOracle_LooselyTypedAction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want schemas.TargetDescriptor
	}{
		{
			name: "numeric value",
			body: `{"type":"fill","target_label":"Years of Experience","value":5}`,
			want: schemas.TargetDescriptor{Kind: schemas.ActionFill, Label: "Years of Experience", Value: "5"},
		},
		{
			name: "quoted element id",
			body: `{"type":"click","element_id":"7","confidence":"0.6"}`,
			want: schemas.TargetDescriptor{Kind: schemas.ActionClick, ElementID: 7, Confidence: 0.6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle, client := setupOracle(t, nil)
			client.On("Generate", mock.Anything, mock.Anything).
				Return(&schemas.GenerationResponse{Text: `{"status":"processing","page_state":"Experience","reasoning":"r","action":` + tt.body + `}`}, nil).Once()

			d, err := oracle.Analyze(context.Background(), testObservation())
			require.NoError(t, err)
			assert.Equal(t, schemas.StatusProcessing, d.Status)
			assert.Equal(t, tt.want, d.Action)
		})
	}
}

func TestLLMOracle_ParseFailure(t *testing.T) {
	tracker := usage.NewTracker("gpt-4o", nil)
	core, logs := observer.New(zap.WarnLevel)
	client := new(mocks.MockLLMClient)
	oracle := NewLLMOracle(client, config.LLMConfig{Model: "gpt-4o"}, tracker, zap.New(core))
	client.On("Generate", mock.Anything, mock.Anything).
		Return(&schemas.GenerationResponse{Text: "I cannot help with that.", PromptTokens: 900, CompletionTokens: 10}, nil).Once()

	d, err := oracle.Analyze(context.Background(), testObservation())
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusError, d.Status)
	assert.Equal(t, "failed to parse model response", d.Reasoning)

	// Tokens were still spent.
	steps := tracker.Steps()
	require.Len(t, steps, 1)
	assert.Empty(t, steps[0].Action)
	assert.Equal(t, 1, logs.FilterMessage("Failed to parse model response").Len())
}

func TestLLMOracle_TransportError(t *testing.T) {
	tracker := usage.NewTracker("gpt-4o", nil)
	oracle, client := setupOracle(t, tracker)
	client.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("429 too many requests")).Once()

	d, err := oracle.Analyze(context.Background(), testObservation())
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusError, d.Status)
	assert.Contains(t, d.Reasoning, "model request failed")
	assert.Contains(t, d.Reasoning, "429")
	assert.Empty(t, tracker.Steps())
}

func TestLLMOracle_CancelledContext(t *testing.T) {
	oracle, client := setupOracle(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := oracle.Analyze(ctx, testObservation())
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestLLMOracle_RecoversPanics(t *testing.T) {
	oracle, client := setupOracle(t, nil)
	client.On("Generate", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("provider bug")
	}).Return(nil, nil)

	var d schemas.Decision
	var err error
	require.NotPanics(t, func() { d, err = oracle.Analyze(context.Background(), testObservation()) })
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusError, d.Status)
}

func TestLLMOracle_GenerateUserPrompt(t *testing.T) {
	oracle, _ := setupOracle(t, nil)

	t.Run("semantic", func(t *testing.T) {
		obs := testObservation()
		prompt, err := oracle.generateUserPrompt(obs)
		require.NoError(t, err)
		assert.Contains(t, prompt, "APPLICANT DATA:")
		assert.Contains(t, prompt, `"email": "ada@example.com"`)
		assert.Contains(t, prompt, "upload_cover_letter")
		assert.NotContains(t, prompt, "RECENT ACTIONS:")
		assert.NotContains(t, prompt, "RED NUMBERED BOXES")
	})

	t.Run("with history", func(t *testing.T) {
		obs := testObservation()
		obs.History = []schemas.ActionHistoryEntry{{Step: 1, Kind: schemas.ActionFill, Target: "Email", Success: false}}
		prompt, err := oracle.generateUserPrompt(obs)
		require.NoError(t, err)
		assert.Contains(t, prompt, "RECENT ACTIONS:")
		assert.Contains(t, prompt, `{"step":1,"type":"fill","target":"Email","success":false}`)
	})

	t.Run("marked", func(t *testing.T) {
		obs := testObservation()
		obs.Marked = true
		obs.Markers = []schemas.Marker{{ID: 1, Tag: "input", Type: "email", Placeholder: "you@example.com"}, {ID: 2, Tag: "button", Text: "Next"}}
		prompt, err := oracle.generateUserPrompt(obs)
		require.NoError(t, err)
		assert.Contains(t, prompt, "RED NUMBERED BOXES")
		assert.Contains(t, prompt, `"element_id"`)
		assert.Contains(t, prompt, "#1: <input type='email'")
		assert.Contains(t, prompt, "#2: <button> 'Next'")
	})

	t.Run("marked without markers falls back", func(t *testing.T) {
		obs := testObservation()
		obs.Marked = true
		prompt, err := oracle.generateUserPrompt(obs)
		require.NoError(t, err)
		assert.NotContains(t, prompt, "RED NUMBERED BOXES")
	})
}

func TestNormalizeDecision(t *testing.T) {
	d := normalizeDecision(schemas.Decision{
		Status: " COMPLETED ",
		Action: schemas.TargetDescriptor{Kind: "Scroll_Down", Label: "  "},
	})
	assert.Equal(t, schemas.StatusCompleted, d.Status)
	assert.Equal(t, schemas.ActionScrollDown, d.Action.Kind)
	assert.Empty(t, d.Action.Label)
}
