package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/config"
	"github.com/xkilldash9x/visionfill/internal/form"
	"github.com/xkilldash9x/visionfill/internal/marker"
	"github.com/xkilldash9x/visionfill/internal/screenshot"
	"github.com/xkilldash9x/visionfill/internal/usage"
)

const (
	loopBreakPause  = 500 * time.Millisecond
	journalTimeout  = 5 * time.Second
	finalFrameTag   = "final_confirmation"
	prefillLabel    = "Resume"
	defaultMaxSteps = 30
)

// Deps are the collaborators a run needs. Page, Oracle, Forms and Frames
// are required; the rest are optional.
type Deps struct {
	Page   browser.Page
	Oracle schemas.Oracle
	Forms  FormActions
	Frames FrameSource

	// Marker enables coordinate mode when agent.enable_marking is set.
	Marker  MarkerActions
	Archive *screenshot.Archive
	Journal schemas.RunJournal
	Usage   *usage.Tracker
	// Profile is the condensed applicant profile shown to the oracle.
	Profile map[string]any
}

// RunResult is what a finished run reports.
type RunResult struct {
	RunID   string
	Outcome schemas.RunOutcome
	// Steps counts oracle iterations, not history entries.
	Steps   int
	Reason  string
	History []schemas.ActionHistoryEntry
	Usage   usage.Summary
}

// Agent runs the Look, Think, Act cycle against a single page. It owns the
// page and marker state for the duration of a run and is not safe for
// concurrent Runs.
type Agent struct {
	cfg          config.AgentConfig
	postLoadWait time.Duration
	deps         Deps
	router       *ActionRouter
	logger       *zap.Logger

	history []schemas.ActionHistoryEntry

	// sleep waits for d or until ctx is done. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an Agent. The router is built over deps.Forms and, when
// marking is enabled, deps.Marker.
func New(cfg config.Interface, deps Deps, logger *zap.Logger) (*Agent, error) {
	switch {
	case deps.Page == nil:
		return nil, errors.New("agent requires a page")
	case deps.Oracle == nil:
		return nil, errors.New("agent requires an oracle")
	case deps.Forms == nil:
		return nil, errors.New("agent requires form executors")
	case deps.Frames == nil:
		return nil, errors.New("agent requires a frame source")
	}

	agentCfg := cfg.Agent()
	if agentCfg.MaxSteps <= 0 {
		agentCfg.MaxSteps = defaultMaxSteps
	}
	if agentCfg.HistoryWindow <= 0 {
		agentCfg.HistoryWindow = 5
	}
	if !agentCfg.EnableMarking {
		deps.Marker = nil
	}

	logger = logger.Named("agent")
	return &Agent{
		cfg:          agentCfg,
		postLoadWait: cfg.Browser().PostLoadWait,
		deps:         deps,
		router:       NewActionRouter(deps.Forms, deps.Marker, logger),
		logger:       logger,
		sleep:        sleepContext,
		now:          time.Now,
	}, nil
}

// Run navigates to url and drives the loop until the oracle reports
// completion or an error, the step budget runs out, or ctx is cancelled.
// Only fatal failures are returned as errors; every other ending is an
// Outcome.
func (a *Agent) Run(ctx context.Context, url string) (RunResult, error) {
	runID := uuid.New().String()
	log := a.logger.With(zap.String("run_id", runID[:8]))
	a.history = nil
	res := RunResult{RunID: runID}

	log.Info("Agent is starting run.",
		zap.String("url", url),
		zap.Int("max_steps", a.cfg.MaxSteps),
		zap.Bool("marking", a.deps.Marker != nil),
	)
	a.journal(log, "start", func(jctx context.Context, j schemas.RunJournal) error {
		return j.StartRun(jctx, runID, url, a.now())
	})

	if err := a.deps.Page.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return a.finish(log, res, schemas.OutcomeCancelled, "cancelled during navigation"), nil
		}
		res = a.finish(log, res, schemas.OutcomeError, err.Error())
		return res, fmt.Errorf("failed to open application page: %w", err)
	}
	if err := a.sleep(ctx, a.postLoadWait); err != nil {
		return a.finish(log, res, schemas.OutcomeCancelled, "cancelled while page settled"), nil
	}

	if a.cfg.PrefillResume {
		a.prefill(ctx, log)
	}

	for step := 1; ; step++ {
		if ctx.Err() != nil {
			log.Warn("Run cancelled.", zap.Int("step", step), zap.Error(ctx.Err()))
			return a.finish(log, res, schemas.OutcomeCancelled, ctx.Err().Error()), nil
		}
		if step > a.cfg.MaxSteps {
			log.Warn("Reached maximum steps.", zap.Int("max_steps", a.cfg.MaxSteps))
			return a.finish(log, res, schemas.OutcomeExhausted, "step budget exhausted"), nil
		}

		res.Steps = step
		if outcome, reason, done := a.step(ctx, log.With(zap.Int("step", step)), runID, step); done {
			return a.finish(log, res, outcome, reason), nil
		}

		// Cancellation during the delay is picked up by the check above.
		_ = a.sleep(ctx, a.cfg.ActionDelay)
	}
}

// step runs one Look, Think, Act iteration. done is true when the run
// should stop with outcome.
func (a *Agent) step(ctx context.Context, log *zap.Logger, runID string, step int) (outcome schemas.RunOutcome, reason string, done bool) {
	// -- Look --
	var manifest marker.Manifest
	marked := false
	if a.deps.Marker != nil {
		m, err := a.deps.Marker.Mark(ctx)
		if err != nil {
			log.Warn("Failed to mark page, continuing without markers.", zap.Error(err))
		} else {
			manifest, marked = m, true
		}
	}

	frame, err := a.deps.Frames.Capture(ctx)
	if err != nil {
		a.removeMarkers(ctx, log)
		if ctx.Err() != nil {
			return schemas.OutcomeCancelled, ctx.Err().Error(), true
		}
		log.Error("Failed to capture screenshot.", zap.Error(err))
		return schemas.OutcomeError, fmt.Sprintf("screenshot capture failed: %v", err), true
	}
	shotPath := a.archive(log, step, "", frame.JPEG)

	// -- Think --
	decision, err := a.deps.Oracle.Analyze(ctx, schemas.Observation{
		Step:       step,
		Screenshot: frame.JPEG,
		Profile:    a.deps.Profile,
		History:    a.recentHistory(),
		Marked:     marked,
		Markers:    manifest.Markers,
	})
	if err != nil {
		if ctx.Err() != nil {
			a.removeMarkers(ctx, log)
			return schemas.OutcomeCancelled, ctx.Err().Error(), true
		}
		decision = schemas.ErrorDecision(fmt.Sprintf("oracle failed: %v", err))
	}
	log.Info("Oracle decision received.",
		zap.String("status", string(decision.Status)),
		zap.String("page_state", decision.PageState),
		zap.String("reasoning", decision.Reasoning),
		zap.String("action", string(decision.Action.Kind)),
		zap.String("target", decision.Action.TargetKey()),
	)

	record := schemas.JournalStep{
		RunID:          runID,
		Step:           step,
		Status:         decision.Status,
		PageState:      decision.PageState,
		Reasoning:      decision.Reasoning,
		Action:         decision.Action,
		ScreenshotPath: shotPath,
	}
	a.fillUsage(&record)

	switch decision.Status {
	case schemas.StatusCompleted:
		a.removeMarkers(ctx, log)
		log.Info("Oracle reports the application is complete.")
		if final, err := a.deps.Frames.Capture(ctx); err != nil {
			log.Warn("Failed to capture confirmation screenshot.", zap.Error(err))
		} else {
			record.ScreenshotPath = a.archive(log, step, finalFrameTag, final.JPEG)
		}
		record.Success = true
		a.recordStep(log, record)
		return schemas.OutcomeCompleted, decision.Reasoning, true
	case schemas.StatusError:
		a.removeMarkers(ctx, log)
		log.Error("Oracle reports an error state.", zap.String("reasoning", decision.Reasoning))
		a.recordStep(log, record)
		return schemas.OutcomeError, decision.Reasoning, true
	}

	// -- Act --
	var ok bool
	if marked && decision.Action.ElementID > 0 {
		ok = a.router.ExecuteMarked(ctx, manifest.Epoch, decision.Action)
	} else {
		ok = a.router.Execute(ctx, decision.Action)
	}
	a.removeMarkers(ctx, log)

	a.history = append(a.history, schemas.ActionHistoryEntry{
		Step:    step,
		Kind:    decision.Action.Kind,
		Target:  decision.Action.TargetKey(),
		Success: ok,
	})
	record.Success = ok
	a.recordStep(log, record)

	if looping, dir := DetectLoop(a.history); looping {
		a.breakLoop(ctx, log, dir)
	}
	return "", "", false
}

// prefill uploads the resume before the first oracle call and records it
// as step 0.
func (a *Agent) prefill(ctx context.Context, log *zap.Logger) {
	target := schemas.TargetDescriptor{Kind: schemas.ActionUploadResume, Label: prefillLabel}
	ok := a.router.Execute(ctx, target)
	a.history = append(a.history, schemas.ActionHistoryEntry{
		Step:    0,
		Kind:    target.Kind,
		Target:  target.TargetKey(),
		Success: ok,
	})
	log.Info("Resume prefill attempted.", zap.Bool("success", ok))
}

func (a *Agent) breakLoop(ctx context.Context, log *zap.Logger, dir form.Direction) {
	log.Warn("Loop detected, scrolling to break out.", zap.Stringer("direction", dir), zap.Int("history", len(a.history)))
	if err := a.deps.Forms.Scroll(context.WithoutCancel(ctx), dir); err != nil {
		log.Debug("Loop-break scroll failed.", zap.Error(err))
	}
	_ = a.sleep(ctx, loopBreakPause)
	a.history = truncateHistory(a.history)
}

// recentHistory returns a copy of the newest HistoryWindow entries.
func (a *Agent) recentHistory() []schemas.ActionHistoryEntry {
	h := a.history
	if len(h) > a.cfg.HistoryWindow {
		h = h[len(h)-a.cfg.HistoryWindow:]
	}
	out := make([]schemas.ActionHistoryEntry, len(h))
	copy(out, h)
	return out
}

// History returns a copy of the current action history.
func (a *Agent) History() []schemas.ActionHistoryEntry {
	out := make([]schemas.ActionHistoryEntry, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Agent) removeMarkers(ctx context.Context, log *zap.Logger) {
	if a.deps.Marker == nil {
		return
	}
	if err := a.deps.Marker.Remove(context.WithoutCancel(ctx)); err != nil {
		log.Debug("Failed to remove markers.", zap.Error(err))
	}
}

func (a *Agent) archive(log *zap.Logger, step int, tag string, jpeg []byte) string {
	if a.deps.Archive == nil {
		return ""
	}
	path, err := a.deps.Archive.Save(step, tag, jpeg)
	if err != nil {
		log.Warn("Failed to archive screenshot.", zap.Error(err))
		return ""
	}
	return path
}

func (a *Agent) fillUsage(record *schemas.JournalStep) {
	if a.deps.Usage == nil {
		return
	}
	steps := a.deps.Usage.Steps()
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Step == record.Step {
			record.PromptTokens = steps[i].PromptTokens
			record.CompletionTokens = steps[i].CompletionTokens
			record.Cost = steps[i].Cost
			return
		}
	}
}

func (a *Agent) recordStep(log *zap.Logger, record schemas.JournalStep) {
	record.At = a.now()
	a.journal(log, "step", func(jctx context.Context, j schemas.RunJournal) error {
		return j.RecordStep(jctx, record)
	})
}

// journal runs fn against the journal, if any. Journal writes never stop a
// run and survive cancellation of the run context.
func (a *Agent) journal(log *zap.Logger, op string, fn func(context.Context, schemas.RunJournal) error) {
	if a.deps.Journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := fn(jctx, a.deps.Journal); err != nil {
		log.Warn("Run journal write failed.", zap.String("op", op), zap.Error(err))
	}
}

func (a *Agent) finish(log *zap.Logger, res RunResult, outcome schemas.RunOutcome, reason string) RunResult {
	res.Outcome = outcome
	res.Reason = reason
	res.History = a.History()
	if a.deps.Usage != nil {
		res.Usage = a.deps.Usage.Summary()
	}

	a.journal(log, "finish", func(jctx context.Context, j schemas.RunJournal) error {
		return j.FinishRun(jctx, schemas.RunSummary{
			RunID:            res.RunID,
			Outcome:          outcome,
			Steps:            res.Steps,
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			Cost:             res.Usage.TotalCost,
			FinishedAt:       a.now(),
		})
	})

	log.Info("Run finished.",
		zap.String("outcome", string(outcome)),
		zap.String("reason", reason),
		zap.Int("steps", res.Steps),
		zap.Int("history", len(res.History)),
	)
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
