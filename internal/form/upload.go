package form

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/locator"
)

const fileInput = `input[type="file"]`

// Positional picks for when no file input identifies itself. They assume the
// common layout of resume first, cover letter second, and are wrong for
// forms that order them differently.
func firstInput(n int) int {
	if n > 0 {
		return 0
	}
	return -1
}

func coverLetterInput(n int) int {
	switch {
	case n >= 2:
		return 1
	case n == 1:
		return 0
	}
	return -1
}

func (e *Executor) requireFile(what, path string) error {
	if path == "" {
		return fmt.Errorf("%w: no %s configured", ErrFileMissing, what)
	}
	if !e.opts.FileExists(path) {
		return fmt.Errorf("%w: %s", ErrFileMissing, path)
	}
	return nil
}

// upload tolerates hidden inputs; styled upload widgets hide the real
// <input type="file">.
func (e *Executor) upload(ctx context.Context, action, label, path string, strategies ...locator.Strategy) error {
	c := e.chain(label, strategies...)
	c.RequireVisible = false
	c.Recovery = false
	err := c.Run(ctx, e.page, func(ctx context.Context, el browser.Locator) error {
		return el.SetInputFiles(ctx, path)
	})
	if err != nil {
		return e.failed(action, label, err)
	}
	e.succeeded(action, label, zap.String("file", filepath.Base(path)))
	return nil
}

func labelledFileInputs(label string) []locator.Strategy {
	return []locator.Strategy{
		locator.Query(browser.ByLabel(label)),
		css(`label:has-text("%s") input[type="file"]`, label),
		css(`label:has-text("%s") ~ input[type="file"]`, label),
	}
}

// UploadResume attaches the configured resume.
func (e *Executor) UploadResume(ctx context.Context, label string) error {
	if label == "" {
		label = "Resume"
	}
	if err := e.requireFile("resume", e.opts.ResumePath); err != nil {
		return e.failed("upload_resume", label, err)
	}
	strategies := []locator.Strategy{
		css(`input[type="file"][name*="resume" i]`),
		css(`input[type="file"][id*="resume" i]`),
		css(`input[type="file"][name*="cv" i]`),
		css(`input[type="file"][accept*="pdf"]`),
	}
	strategies = append(strategies, labelledFileInputs(label)...)
	strategies = append(strategies, &locator.PositionalStrategy{
		Query: browser.CSS(fileInput), Pick: firstInput, Label: "first file input",
	})
	return e.upload(ctx, "upload_resume", label, e.opts.ResumePath, strategies...)
}

// UploadCoverLetter attaches the configured cover letter file.
func (e *Executor) UploadCoverLetter(ctx context.Context, label string) error {
	if label == "" {
		label = "Cover Letter"
	}
	if err := e.requireFile("cover letter", e.opts.CoverLetterPath); err != nil {
		return e.failed("upload_cover_letter", label, err)
	}
	strategies := []locator.Strategy{
		css(`input[type="file"][name*="cover" i]`),
		css(`input[type="file"][id*="cover" i]`),
		css(`input[type="file"][name*="letter" i]`),
	}
	strategies = append(strategies, labelledFileInputs(label)...)
	strategies = append(strategies, &locator.PositionalStrategy{
		Query: browser.CSS(fileInput), Pick: coverLetterInput, Label: "second file input",
	})
	return e.upload(ctx, "upload_cover_letter", label, e.opts.CoverLetterPath, strategies...)
}

// Upload routes resume and cover letter labels to their dedicated
// executors and otherwise attaches the file at pathHint.
func (e *Executor) Upload(ctx context.Context, label, pathHint string) error {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "resume") || strings.Contains(l, "cv"):
		return e.UploadResume(ctx, label)
	case strings.Contains(l, "cover"):
		return e.UploadCoverLetter(ctx, label)
	}

	path, err := homedir.Expand(pathHint)
	if err != nil {
		return e.failed("upload", label, fmt.Errorf("%w: %v", ErrFileMissing, err))
	}
	if err := e.requireFile("file path", path); err != nil {
		return e.failed("upload", label, err)
	}
	norm := locator.Normalize(label)
	strategies := labelledFileInputs(label)
	strategies = append(strategies,
		css(`input[type="file"][name*="%s" i]`, norm),
		css(`input[type="file"][id*="%s" i]`, norm),
		&locator.PositionalStrategy{Query: browser.CSS(fileInput), Pick: firstInput, Label: "first file input"},
	)
	return e.upload(ctx, "upload", label, path, strategies...)
}
