package schemas

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
)

// ActionKind is the closed set of interactions the oracle can request.
type ActionKind string

const (
	ActionFill              ActionKind = "fill"
	ActionClick             ActionKind = "click"
	ActionSelect            ActionKind = "select"
	ActionCheck             ActionKind = "check"
	ActionRadio             ActionKind = "radio"
	ActionUploadResume      ActionKind = "upload_resume"
	ActionUploadCoverLetter ActionKind = "upload_cover_letter"
	ActionUpload            ActionKind = "upload"
	ActionScrollDown        ActionKind = "scroll_down"
	ActionScrollUp          ActionKind = "scroll_up"
	ActionWait              ActionKind = "wait"
)

// AllActionKinds lists every kind in a stable order.
var AllActionKinds = []ActionKind{
	ActionFill, ActionClick, ActionSelect, ActionCheck, ActionRadio,
	ActionUploadResume, ActionUploadCoverLetter, ActionUpload,
	ActionScrollDown, ActionScrollUp, ActionWait,
}

// IsValid reports whether k is one of the known action kinds.
func (k ActionKind) IsValid() bool {
	for _, known := range AllActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseActionKind normalizes and validates a raw kind string.
func ParseActionKind(raw string) (ActionKind, error) {
	k := ActionKind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown action kind %q", raw)
	}
	return k, nil
}

// TargetDescriptor describes what the oracle wants done and to which element.
// It is immutable once issued.
type TargetDescriptor struct {
	Kind         ActionKind `json:"type"`
	Label        string     `json:"target_label,omitempty"`
	Value        string     `json:"value,omitempty"`
	ElementID    int        `json:"element_id,omitempty"` // 0 means no marker was referenced.
	FilePathHint string     `json:"file_path,omitempty"`

	// Advisory fields echoed by the model. They never drive resolution.
	TargetType string  `json:"target_type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// UnmarshalJSON decodes a descriptor as the model writes it, which is looser
// than the Go types: value may arrive as a number or bool, element_id and
// confidence as quoted numbers.
func (t *TargetDescriptor) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind         ActionKind      `json:"type"`
		Label        string          `json:"target_label"`
		Value        json.RawMessage `json:"value"`
		ElementID    json.RawMessage `json:"element_id"`
		FilePathHint string          `json:"file_path"`
		TargetType   string          `json:"target_type"`
		Confidence   json.RawMessage `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := looseString(raw.Value)
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	id, err := looseInt(raw.ElementID)
	if err != nil {
		return fmt.Errorf("invalid element_id: %w", err)
	}
	// Confidence is advisory; an unreadable one is dropped.
	confidence, _ := looseFloat(raw.Confidence)

	*t = TargetDescriptor{
		Kind:         raw.Kind,
		Label:        raw.Label,
		Value:        value,
		ElementID:    id,
		FilePathHint: raw.FilePathHint,
		TargetType:   raw.TargetType,
		Confidence:   confidence,
	}
	return nil
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// looseString reads a JSON string, or the literal text of a number or bool.
func looseString(raw []byte) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case '{', '[':
		return "", fmt.Errorf("expected a scalar, got %s", raw)
	}
	return string(raw), nil
}

func looseFloat(raw []byte) (float64, error) {
	s, err := looseString(raw)
	if err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// looseInt accepts 7, 7.0, "7" and "#7".
func looseInt(raw []byte) (int, error) {
	s, err := looseString(raw)
	if err != nil {
		return 0, err
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// TargetKey is the identity used for history and loop detection: the label when
// present, otherwise the marker reference.
func (t TargetDescriptor) TargetKey() string {
	if t.Label != "" {
		return t.Label
	}
	if t.ElementID > 0 {
		return "#" + strconv.Itoa(t.ElementID)
	}
	return ""
}

// DecisionStatus is the oracle's view of overall progress.
type DecisionStatus string

const (
	StatusProcessing DecisionStatus = "processing"
	StatusCompleted  DecisionStatus = "completed"
	StatusError      DecisionStatus = "error"
)

// Decision is one structured response from the oracle.
type Decision struct {
	Status    DecisionStatus   `json:"status"`
	PageState string           `json:"page_state"`
	Reasoning string           `json:"reasoning"`
	Action    TargetDescriptor `json:"action"`
}

// ErrorDecision builds the decision used when the oracle cannot produce one.
func ErrorDecision(reason string) Decision {
	return Decision{Status: StatusError, Reasoning: reason}
}

// ActionHistoryEntry records the outcome of one executed action.
type ActionHistoryEntry struct {
	Step    int        `json:"step"`
	Kind    ActionKind `json:"type"`
	Target  string     `json:"target"`
	Success bool       `json:"success"`
}

// Observation is everything the oracle sees for a single step.
type Observation struct {
	Step       int
	Screenshot []byte // JPEG, already resized.
	Profile    map[string]any
	History    []ActionHistoryEntry
	Marked     bool
	Markers    []Marker
}

// Oracle maps an observation to the next decision. Implementations own any
// model calls and usage accounting.
type Oracle interface {
	Analyze(ctx context.Context, obs Observation) (Decision, error)
}
