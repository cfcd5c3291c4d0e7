package schemas

import (
	"context"
	"time"
)

// RunOutcome is the terminal state of a run.
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeError     RunOutcome = "error"
	OutcomeExhausted RunOutcome = "exhausted"
	OutcomeCancelled RunOutcome = "cancelled"
)

// JournalStep is the persisted record of one loop iteration.
type JournalStep struct {
	RunID            string
	Step             int
	Status           DecisionStatus
	PageState        string
	Reasoning        string
	Action           TargetDescriptor
	Success          bool
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	ScreenshotPath   string
	At               time.Time
}

// RunSummary closes a journaled run.
type RunSummary struct {
	RunID            string
	Outcome          RunOutcome
	Steps            int
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	FinishedAt       time.Time
}

// RunJournal persists run progress. Implementations must tolerate being
// called from a loop that keeps going when a write fails.
type RunJournal interface {
	StartRun(ctx context.Context, runID, url string, startedAt time.Time) error
	RecordStep(ctx context.Context, step JournalStep) error
	FinishRun(ctx context.Context, summary RunSummary) error
}
