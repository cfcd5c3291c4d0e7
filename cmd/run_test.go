package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/browser/browsertest"
	"github.com/xkilldash9x/visionfill/internal/config"
	"github.com/xkilldash9x/visionfill/internal/mocks"
	"github.com/xkilldash9x/visionfill/internal/profile"
)

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeComponents swaps the component factory for one backed by a fake page
// and a scripted LLM client. The profile still loads from config.
func fakeComponents(t *testing.T, replies ...string) (*browsertest.Page, *mocks.MockLLMClient, *int) {
	t.Helper()
	page := browsertest.NewPage()
	page.ScreenshotData = pngFrame(t)

	client := new(mocks.MockLLMClient)
	for i, reply := range replies {
		call := client.On("Generate", mock.Anything, mock.Anything).
			Return(&schemas.GenerationResponse{Text: reply, Model: "gemini-2.5-flash", PromptTokens: 1500, CompletionTokens: 60}, nil)
		if i < len(replies)-1 {
			call.Once()
		}
	}
	client.On("Close").Return(nil)

	calls := 0
	newRunComponents = func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*runComponents, error) {
		calls++
		p, err := profile.Load(cfg.Files().Profile)
		if err != nil {
			return nil, err
		}
		return &runComponents{Profile: p, Client: client, Page: page}, nil
	}
	return page, client, &calls
}

const (
	completedReply = `{"status":"completed","page_state":"Confirmation","reasoning":"Thank you for applying","action":{"type":"wait"}}`
	waitReply      = "```json\n{\"status\":\"processing\",\"page_state\":\"Loading\",\"reasoning\":\"Spinner\",\"action\":{\"type\":\"wait\"}}\n```"
)

func TestRunCmd_Completed(t *testing.T) {
	resetForTest(t)
	cfgPath := writeTestConfig(t)
	page, client, calls := fakeComponents(t, completedReply)

	out, err := executeRoot(t, "", "run", "--config", cfgPath, "--url", "jobs.example.com/apply/42", "--yes")
	require.NoError(t, err)
	assert.Equal(t, ExitCompleted, ExitCode(err))

	assert.Equal(t, 1, *calls)
	assert.Equal(t, []string{"https://jobs.example.com/apply/42"}, page.Navigated)
	assert.Contains(t, out, "finished: completed after 1 steps")
	assert.Contains(t, out, "Reason: Thank you for applying")
	assert.Contains(t, out, "Tokens: 1560")
	client.AssertCalled(t, "Close")

	shots, globErr := filepath.Glob(filepath.Join(filepath.Dir(cfgPath), "screenshots", "*_final_confirmation.jpg"))
	require.NoError(t, globErr)
	assert.Len(t, shots, 1)
}

func TestRunCmd_ExhaustedExitCode(t *testing.T) {
	resetForTest(t)
	cfgPath := writeTestConfig(t)
	_, client, _ := fakeComponents(t, waitReply)

	out, err := executeRoot(t, "", "run", "--config", cfgPath, "--url", "https://jobs.example.com", "--yes", "--max-steps", "2")
	require.Error(t, err)
	assert.Equal(t, ExitExhausted, ExitCode(err))
	assert.Contains(t, out, "finished: exhausted after 2 steps")
	client.AssertNumberOfCalls(t, "Generate", 2)
}

func TestRunCmd_ModelErrorExitCode(t *testing.T) {
	resetForTest(t)
	cfgPath := writeTestConfig(t)
	fakeComponents(t, "not json at all")

	out, err := executeRoot(t, "", "run", "--config", cfgPath, "--url", "https://jobs.example.com", "--yes")
	require.Error(t, err)
	assert.Equal(t, ExitFailed, ExitCode(err))
	assert.Contains(t, out, "Reason: failed to parse model response")
}

func TestRunCmd_NavigationFailure(t *testing.T) {
	resetForTest(t)
	cfgPath := writeTestConfig(t)
	page, _, _ := fakeComponents(t, completedReply)
	page.NavigateErr = errors.New("net::ERR_CONNECTION_REFUSED")

	_, err := executeRoot(t, "", "run", "--config", cfgPath, "--url", "https://jobs.example.com", "--yes")
	require.Error(t, err)
	assert.Equal(t, ExitFailed, ExitCode(err))
	assert.Contains(t, err.Error(), "ERR_CONNECTION_REFUSED")
}

func TestRunCmd_DeclinedConfirmation(t *testing.T) {
	resetForTest(t)
	cfgPath := writeTestConfig(t)
	_, _, calls := fakeComponents(t, completedReply)

	out, err := executeRoot(t, "n\n", "run", "--config", cfgPath, "--url", "https://jobs.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "URL:          https://jobs.example.com")
	assert.Contains(t, out, "Cancelled by user.")
	assert.Zero(t, *calls)
}

func TestRunCmd_RequiresURL(t *testing.T) {
	resetForTest(t)
	cfgPath := writeTestConfig(t)
	_, _, calls := fakeComponents(t, completedReply)

	_, err := executeRoot(t, "", "run", "--config", cfgPath, "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"url" not set`)
	assert.Zero(t, *calls)
}

func TestRunCmd_ComponentFailure(t *testing.T) {
	resetForTest(t)
	cfgPath := writeTestConfig(t)
	newRunComponents = func(context.Context, config.Interface, *zap.Logger) (*runComponents, error) {
		return &runComponents{}, errors.New("playwright driver missing")
	}

	_, err := executeRoot(t, "", "run", "--config", cfgPath, "--url", "https://jobs.example.com", "--yes")
	require.Error(t, err)
	assert.Equal(t, ExitFailed, ExitCode(err))
	assert.Contains(t, err.Error(), "failed to initialize run components")
}

func TestApplyRunFlagOverrides(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keep config",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				def := config.NewDefaultConfig()
				assert.Equal(t, def.Agent(), cfg.Agent())
				assert.Equal(t, def.Files(), cfg.Files())
				assert.Equal(t, def.Browser().Headless, cfg.Browser().Headless)
			},
		},
		{
			name: "file paths",
			args: []string{"--profile", "p.json", "--resume", "cv.pdf", "--cover-letter", "letter.txt"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, config.FilesConfig{Profile: "p.json", Resume: "cv.pdf", CoverLetter: "letter.txt"}, cfg.Files())
			},
		},
		{
			name: "agent and browser switches",
			args: []string{"--marking", "--headless", "--max-steps", "12", "--delay", "250ms"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.True(t, cfg.Agent().EnableMarking)
				assert.True(t, cfg.Browser().Headless)
				assert.Equal(t, 12, cfg.Agent().MaxSteps)
				assert.Equal(t, 250*time.Millisecond, cfg.Agent().ActionDelay)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			runCmd := newRunCmd()
			require.NoError(t, runCmd.ParseFlags(tt.args))
			applyRunFlagOverrides(runCmd, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestConfirmRun(t *testing.T) {
	tests := map[string]bool{
		"\n":     true,
		"y\n":    true,
		"YES\n":  true,
		"":       true,
		"n\n":    false,
		"nope\n": false,
		" no \n": false,
		"yes":    true,
	}
	for input, want := range tests {
		var out bytes.Buffer
		assert.Equal(t, want, confirmRun(strings.NewReader(input), &out), "input %q", input)
		assert.Contains(t, out.String(), "Proceed?")
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(&ExitError{Code: ExitExhausted, Outcome: schemas.OutcomeExhausted}))
	assert.Equal(t, 130, ExitCode(context.Canceled))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))

	wrapped := &ExitError{Code: ExitFailed, Outcome: schemas.OutcomeError, Err: fs.ErrNotExist}
	assert.ErrorIs(t, wrapped, fs.ErrNotExist)

	assert.Equal(t, ExitCompleted, exitCodeFor(schemas.OutcomeCompleted))
	assert.Equal(t, ExitCancelled, exitCodeFor(schemas.OutcomeCancelled))
	assert.Equal(t, ExitFailed, exitCodeFor(schemas.OutcomeError))
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/jobs", normalizeURL(" example.com/jobs "))
	assert.Equal(t, "http://localhost:8080", normalizeURL("http://localhost:8080"))
	assert.Equal(t, "https://example.com", normalizeURL("https://example.com"))
}

func TestLoadCoverLetter(t *testing.T) {
	dir := t.TempDir()
	p := &profile.Profile{CoverLetter: "  From the profile.  "}

	t.Run("no path uses profile text", func(t *testing.T) {
		cl, err := loadCoverLetter("", p)
		require.NoError(t, err)
		assert.Equal(t, coverLetter{Text: "From the profile."}, cl)
	})

	t.Run("text file is read and uploadable", func(t *testing.T) {
		path := writeFile(t, dir, "letter.txt", "\nDear hiring team,\n")
		cl, err := loadCoverLetter(path, p)
		require.NoError(t, err)
		assert.Equal(t, coverLetter{Path: path, Text: "Dear hiring team,"}, cl)
	})

	t.Run("document is only uploaded", func(t *testing.T) {
		path := writeFile(t, dir, "letter.PDF", "%PDF-1.4")
		cl, err := loadCoverLetter(path, p)
		require.NoError(t, err)
		assert.Equal(t, path, cl.Path)
		assert.Equal(t, "From the profile.", cl.Text)
	})

	t.Run("missing file falls back", func(t *testing.T) {
		cl, err := loadCoverLetter(filepath.Join(dir, "nope.txt"), p)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, coverLetter{Text: "From the profile."}, cl)
	})

	t.Run("directory is rejected", func(t *testing.T) {
		_, err := loadCoverLetter(dir, nil)
		assert.Error(t, err)
	})
}
