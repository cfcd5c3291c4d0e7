// internal/agent/executors.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/form"
)

// ActionHandler performs one kind of action against the page.
type ActionHandler func(ctx context.Context, target schemas.TargetDescriptor) error

// ActionRouter maps an action kind to its executor. It is the single entry
// point for page interactions, and no error or panic escapes it: callers
// get a bool and the details go to the log.
type ActionRouter struct {
	logger   *zap.Logger
	forms    FormActions
	marks    MarkerActions
	handlers map[schemas.ActionKind]ActionHandler
}

// NewActionRouter creates a router over forms. marks may be nil, in which
// case ExecuteMarked degrades to semantic dispatch.
func NewActionRouter(forms FormActions, marks MarkerActions, logger *zap.Logger) *ActionRouter {
	r := &ActionRouter{
		logger:   logger.Named("action_router"),
		forms:    forms,
		marks:    marks,
		handlers: make(map[schemas.ActionKind]ActionHandler),
	}
	r.registerHandlers()
	return r
}

func (r *ActionRouter) registerHandlers() {
	r.handlers[schemas.ActionFill] = r.handleFill
	r.handlers[schemas.ActionClick] = r.handleClick
	r.handlers[schemas.ActionCheck] = r.handleCheck
	r.handlers[schemas.ActionRadio] = r.handleRadio
	r.handlers[schemas.ActionSelect] = r.handleSelect
	r.handlers[schemas.ActionUploadResume] = r.handleUploadResume
	r.handlers[schemas.ActionUploadCoverLetter] = r.handleUploadCoverLetter
	r.handlers[schemas.ActionUpload] = r.handleUpload
	r.handlers[schemas.ActionScrollDown] = r.handleScroll(form.Down)
	r.handlers[schemas.ActionScrollUp] = r.handleScroll(form.Up)
	r.handlers[schemas.ActionWait] = r.handleWait
}

// Execute resolves target semantically and performs it.
func (r *ActionRouter) Execute(ctx context.Context, target schemas.TargetDescriptor) bool {
	return r.guard(ctx, target, "semantic", func(ctx context.Context) error {
		return r.dispatch(ctx, target)
	})
}

// ExecuteMarked performs target against the marker with target.ElementID
// from the given epoch. Kinds without a coordinate form fall through to
// semantic dispatch.
func (r *ActionRouter) ExecuteMarked(ctx context.Context, epoch uint64, target schemas.TargetDescriptor) bool {
	if r.marks == nil || target.ElementID <= 0 {
		return r.Execute(ctx, target)
	}
	return r.guard(ctx, target, "marked", func(ctx context.Context) error {
		switch target.Kind {
		case schemas.ActionFill:
			text := target.Value
			if cl := r.forms.CoverLetterText(); cl != "" && form.IsCoverLetterField(target.Label) {
				text = cl
			}
			return r.marks.TypeInto(ctx, epoch, target.ElementID, text)
		case schemas.ActionCheck:
			return r.marks.CheckAt(ctx, epoch, target.ElementID)
		case schemas.ActionClick, schemas.ActionSelect:
			return r.marks.ClickAt(ctx, epoch, target.ElementID)
		default:
			return r.dispatch(ctx, target)
		}
	})
}

func (r *ActionRouter) dispatch(ctx context.Context, target schemas.TargetDescriptor) error {
	handler, ok := r.handlers[target.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, target.Kind)
	}
	return handler(ctx, target)
}

// guard is the failure boundary. A single resolve-and-act runs to
// completion even if the caller's context is cancelled meanwhile.
func (r *ActionRouter) guard(ctx context.Context, target schemas.TargetDescriptor, mode string, fn func(context.Context) error) (ok bool) {
	log := r.logger.With(
		zap.String("action", string(target.Kind)),
		zap.String("target", target.TargetKey()),
		zap.String("mode", mode),
	)
	defer func() {
		if p := recover(); p != nil {
			log.Error("Panic recovered during action execution.",
				zap.String("error_code", string(ErrCodeExecutorPanic)),
				zap.Any("panic_value", p),
				zap.Stack("stack"),
			)
			ok = false
		}
	}()

	if err := fn(context.WithoutCancel(ctx)); err != nil {
		log.Warn("Action execution failed.", zap.String("error_code", string(ClassifyError(err))), zap.Error(err))
		return false
	}
	log.Debug("Action executed.")
	return true
}

// -- Action Handlers --

func requireField(kind schemas.ActionKind, name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s requires '%s'", ErrMissingParameter, kind, name)
	}
	return nil
}

func (r *ActionRouter) handleFill(ctx context.Context, t schemas.TargetDescriptor) error {
	if err := requireField(t.Kind, "target_label", t.Label); err != nil {
		return err
	}
	return r.forms.Fill(ctx, t.Label, t.Value)
}

func (r *ActionRouter) handleClick(ctx context.Context, t schemas.TargetDescriptor) error {
	if err := requireField(t.Kind, "target_label", t.Label); err != nil {
		return err
	}
	return r.forms.Click(ctx, t.Label)
}

func (r *ActionRouter) handleCheck(ctx context.Context, t schemas.TargetDescriptor) error {
	if err := requireField(t.Kind, "target_label", t.Label); err != nil {
		return err
	}
	return r.forms.Check(ctx, t.Label)
}

// handleRadio needs only the option value; the question label is optional.
func (r *ActionRouter) handleRadio(ctx context.Context, t schemas.TargetDescriptor) error {
	value := t.Value
	if value == "" {
		value = t.Label
	}
	if err := requireField(t.Kind, "value", value); err != nil {
		return err
	}
	return r.forms.Radio(ctx, t.Label, value)
}

func (r *ActionRouter) handleSelect(ctx context.Context, t schemas.TargetDescriptor) error {
	if err := requireField(t.Kind, "target_label", t.Label); err != nil {
		return err
	}
	if err := requireField(t.Kind, "value", t.Value); err != nil {
		return err
	}
	return r.forms.Select(ctx, t.Label, t.Value)
}

func (r *ActionRouter) handleUploadResume(ctx context.Context, t schemas.TargetDescriptor) error {
	return r.forms.UploadResume(ctx, t.Label)
}

func (r *ActionRouter) handleUploadCoverLetter(ctx context.Context, t schemas.TargetDescriptor) error {
	return r.forms.UploadCoverLetter(ctx, t.Label)
}

func (r *ActionRouter) handleUpload(ctx context.Context, t schemas.TargetDescriptor) error {
	return r.forms.Upload(ctx, t.Label, t.FilePathHint)
}

func (r *ActionRouter) handleScroll(dir form.Direction) ActionHandler {
	return func(ctx context.Context, _ schemas.TargetDescriptor) error {
		return r.forms.Scroll(ctx, dir)
	}
}

func (r *ActionRouter) handleWait(ctx context.Context, _ schemas.TargetDescriptor) error {
	return r.forms.Wait(ctx)
}
