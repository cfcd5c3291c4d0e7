// File: internal/agent/interfaces.go
package agent

import (
	"context"

	"github.com/xkilldash9x/visionfill/internal/form"
	"github.com/xkilldash9x/visionfill/internal/marker"
	"github.com/xkilldash9x/visionfill/internal/screenshot"
)

// FormActions is the semantic executor set the router dispatches to.
// *form.Executor implements it.
type FormActions interface {
	Fill(ctx context.Context, label, value string) error
	Click(ctx context.Context, label string) error
	Check(ctx context.Context, label string) error
	Radio(ctx context.Context, label, value string) error
	Select(ctx context.Context, label, value string) error
	UploadResume(ctx context.Context, label string) error
	UploadCoverLetter(ctx context.Context, label string) error
	Upload(ctx context.Context, label, pathHint string) error
	Scroll(ctx context.Context, dir form.Direction) error
	Wait(ctx context.Context) error
	CoverLetterText() string
}

// MarkerActions is the coordinate-mode surface of the marking subsystem.
// *marker.Subsystem implements it.
type MarkerActions interface {
	Mark(ctx context.Context) (marker.Manifest, error)
	Remove(ctx context.Context) error
	ClickAt(ctx context.Context, epoch uint64, id int) error
	CheckAt(ctx context.Context, epoch uint64, id int) error
	TypeInto(ctx context.Context, epoch uint64, id int, text string) error
}

// FrameSource produces the screenshot the oracle looks at.
// *screenshot.Capturer implements it.
type FrameSource interface {
	Capture(ctx context.Context) (screenshot.Frame, error)
}

var (
	_ FormActions   = (*form.Executor)(nil)
	_ MarkerActions = (*marker.Subsystem)(nil)
	_ FrameSource   = (*screenshot.Capturer)(nil)
)
