package schemas

import "context"

// GenerationOptions controls sampling and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"` // Ask the provider for a JSON-only response.
	MaxTokens       int     `json:"max_tokens"`
}

// ImagePart is an inline image attached to a request.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// GenerationRequest is a single multimodal prompt.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Images       []ImagePart       `json:"-"`
	Options      GenerationOptions `json:"options"`
}

// GenerationResponse carries the model text plus the token counts the
// provider reported.
type GenerationResponse struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// LLMClient abstracts a model provider.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)
	// Close releases provider resources.
	Close() error
}
