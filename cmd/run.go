package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/agent"
	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/config"
	"github.com/xkilldash9x/visionfill/internal/form"
	"github.com/xkilldash9x/visionfill/internal/llmclient"
	"github.com/xkilldash9x/visionfill/internal/marker"
	"github.com/xkilldash9x/visionfill/internal/observability"
	"github.com/xkilldash9x/visionfill/internal/profile"
	"github.com/xkilldash9x/visionfill/internal/screenshot"
	"github.com/xkilldash9x/visionfill/internal/store"
	"github.com/xkilldash9x/visionfill/internal/usage"
)

const shutdownTimeout = 15 * time.Second

// Exit codes for finished runs.
const (
	ExitCompleted = 0
	ExitFailed    = 1
	ExitExhausted = 2
	ExitCancelled = 130
)

// ExitError reports a run that finished with a non-zero exit code. It is
// not printed as an error; the run has already logged its outcome.
type ExitError struct {
	Code    int
	Outcome schemas.RunOutcome
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run ended with outcome %s: %v", e.Outcome, e.Err)
	}
	return fmt.Sprintf("run ended with outcome %s", e.Outcome)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error from Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCompleted
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	return ExitFailed
}

func exitCodeFor(outcome schemas.RunOutcome) int {
	switch outcome {
	case schemas.OutcomeCompleted:
		return ExitCompleted
	case schemas.OutcomeExhausted:
		return ExitExhausted
	case schemas.OutcomeCancelled:
		return ExitCancelled
	default:
		return ExitFailed
	}
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fill in the application form at --url",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			applyRunFlagOverrides(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			rawURL, _ := cmd.Flags().GetString("url")
			url := normalizeURL(rawURL)

			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				printRunSummary(cmd.OutOrStdout(), cfg, url)
				if !confirmRun(cmd.InOrStdin(), cmd.OutOrStdout()) {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled by user.")
					return nil
				}
			}

			return runApplication(ctx, cfg, url, cmd.OutOrStdout(), logger)
		},
	}

	runCmd.Flags().String("url", "", "URL of the application form (required)")
	runCmd.Flags().String("profile", "", "Path to the applicant profile JSON. (Overrides config/env)")
	runCmd.Flags().String("resume", "", "Path to the resume to upload. (Overrides config/env)")
	runCmd.Flags().String("cover-letter", "", "Path to a cover letter; text files are also used for textarea fields. (Overrides config/env)")
	runCmd.Flags().Bool("marking", false, "Overlay numbered markers and target elements by id.")
	runCmd.Flags().Bool("headless", false, "Run the browser without a window.")
	runCmd.Flags().Int("max-steps", 0, "Maximum oracle steps. (Overrides config/env)")
	runCmd.Flags().Duration("delay", 0, "Pause between actions, e.g. 1s. (Overrides config/env)")
	runCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt.")
	_ = runCmd.MarkFlagRequired("url")

	return runCmd
}

// applyRunFlagOverrides copies explicitly set flags onto cfg.
func applyRunFlagOverrides(cmd *cobra.Command, cfg config.Interface) {
	flags := cmd.Flags()
	if flags.Changed("profile") {
		v, _ := flags.GetString("profile")
		cfg.SetFilesProfile(v)
	}
	if flags.Changed("resume") {
		v, _ := flags.GetString("resume")
		cfg.SetFilesResume(v)
	}
	if flags.Changed("cover-letter") {
		v, _ := flags.GetString("cover-letter")
		cfg.SetFilesCoverLetter(v)
	}
	if flags.Changed("marking") {
		v, _ := flags.GetBool("marking")
		cfg.SetAgentEnableMarking(v)
	}
	if flags.Changed("headless") {
		v, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(v)
	}
	if flags.Changed("max-steps") {
		v, _ := flags.GetInt("max-steps")
		cfg.SetAgentMaxSteps(v)
	}
	if flags.Changed("delay") {
		v, _ := flags.GetDuration("delay")
		cfg.SetAgentActionDelay(v)
	}
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

func printRunSummary(out io.Writer, cfg config.Interface, url string) {
	files := cfg.Files()
	orNone := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}
	fmt.Fprintf(out, "\nURL:          %s\n", url)
	fmt.Fprintf(out, "Profile:      %s\n", files.Profile)
	fmt.Fprintf(out, "Resume:       %s\n", orNone(files.Resume))
	fmt.Fprintf(out, "Cover letter: %s\n", orNone(files.CoverLetter))
	fmt.Fprintf(out, "Model:        %s/%s\n", cfg.LLM().Provider, cfg.LLM().Model)
	fmt.Fprintf(out, "Marking:      %t\n", cfg.Agent().EnableMarking)
	fmt.Fprintf(out, "Headless:     %t\n", cfg.Browser().Headless)
	fmt.Fprintf(out, "Max steps:    %d\n", cfg.Agent().MaxSteps)
	fmt.Fprintf(out, "Action delay: %s\n\n", cfg.Agent().ActionDelay)
}

// confirmRun asks before starting. An empty answer or closed input means yes.
func confirmRun(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Proceed? [Y/n] ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "yes":
		return true
	}
	return false
}

// runComponents holds what a run needs from the outside world.
type runComponents struct {
	Profile     *profile.Profile
	CoverLetter coverLetter
	Client      schemas.LLMClient
	Browser     *browser.Manager
	Page        browser.Page
	DBPool      *pgxpool.Pool
	Journal     schemas.RunJournal
}

// Shutdown releases everything that was started, in reverse order.
func (rc *runComponents) Shutdown(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if rc.Browser != nil {
		if err := rc.Browser.Shutdown(ctx); err != nil {
			logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if rc.Client != nil {
		if err := rc.Client.Close(); err != nil {
			logger.Warn("Error closing LLM client", zap.Error(err))
		}
	}
	if rc.DBPool != nil {
		rc.DBPool.Close()
	}
}

// newRunComponents is replaced in tests.
var newRunComponents = initializeRunComponents

// initializeRunComponents prepares the profile, the LLM client, the
// browser and, when database.url is set, the run journal. They do not
// depend on each other, so they start concurrently.
func initializeRunComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*runComponents, error) {
	rc := &runComponents{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := profile.Load(cfg.Files().Profile)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		cl, err := loadCoverLetter(cfg.Files().CoverLetter, p)
		if err != nil {
			logger.Warn("Cover letter not loaded.", zap.String("path", cfg.Files().CoverLetter), zap.Error(err))
		}
		rc.Profile, rc.CoverLetter = p, cl
		return nil
	})

	g.Go(func() error {
		client, err := llmclient.NewClient(ctx, cfg.LLM(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		rc.Client = client
		return nil
	})

	g.Go(func() error {
		rc.Browser = browser.NewManager(cfg.Browser(), logger)
		page, err := rc.Browser.NewPage(gctx)
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		rc.Page = page
		return nil
	})

	if dbURL := cfg.Database().URL; dbURL != "" {
		g.Go(func() error {
			pool, err := pgxpool.New(ctx, dbURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			rc.DBPool = pool
			journal, err := store.New(gctx, pool, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize run journal: %w", err)
			}
			if err := journal.Migrate(gctx); err != nil {
				return err
			}
			rc.Journal = journal
			return nil
		})
	}

	return rc, g.Wait()
}

// coverLetter is what the executors get from --cover-letter.
type coverLetter struct {
	// Path is uploaded by upload_cover_letter.
	Path string
	// Text replaces the model's value for cover letter textareas.
	Text string
}

var binaryLetterExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".odt": true, ".rtf": true}

// loadCoverLetter resolves path. Documents are only uploaded; plain text
// files are also read for textarea fills. Without a path the profile's
// cover_letter text is used.
func loadCoverLetter(path string, p *profile.Profile) (coverLetter, error) {
	fallback := coverLetter{}
	if p != nil {
		fallback.Text = strings.TrimSpace(p.CoverLetter)
	}
	if path == "" {
		return fallback, nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return fallback, fmt.Errorf("failed to expand cover letter path: %w", err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return fallback, err
	}
	if !info.Mode().IsRegular() {
		return fallback, fmt.Errorf("cover letter %q is not a regular file", expanded)
	}

	cl := coverLetter{Path: expanded, Text: fallback.Text}
	if binaryLetterExts[strings.ToLower(filepath.Ext(expanded))] {
		return cl, nil
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return cl, fmt.Errorf("failed to read cover letter: %w", err)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		cl.Text = text
	}
	return cl, nil
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// runApplication wires the engine over fresh components and runs it once.
func runApplication(ctx context.Context, cfg config.Interface, url string, out io.Writer, logger *zap.Logger) error {
	components, err := newRunComponents(ctx, cfg, logger)
	if components != nil {
		defer components.Shutdown(logger)
	}
	if err != nil {
		if ctx.Err() != nil {
			return &ExitError{Code: ExitCancelled, Outcome: schemas.OutcomeCancelled, Err: err}
		}
		return fmt.Errorf("failed to initialize run components: %w", err)
	}

	resumePath := expandPath(cfg.Files().Resume)
	if resumePath != "" {
		if _, err := os.Stat(resumePath); err != nil {
			logger.Warn("Resume not found; some applications require one.", zap.String("path", resumePath))
		}
	}

	page := components.Page
	agentCfg := cfg.Agent()
	shotCfg := cfg.Screenshot()

	forms := form.NewExecutor(page, logger, form.Options{
		ResumePath:      resumePath,
		CoverLetterPath: components.CoverLetter.Path,
		CoverLetterText: components.CoverLetter.Text,
		WaitInterval:    agentCfg.WaitInterval,
		ScrollDelta:     agentCfg.ScrollDelta,
	})
	archive, err := screenshot.NewArchive(shotCfg.Dir, shotCfg.KeepLast, logger)
	if err != nil {
		return err
	}
	tracker := usage.NewTracker(cfg.LLM().Model, nil)

	a, err := agent.New(cfg, agent.Deps{
		Page:    page,
		Oracle:  agent.NewLLMOracle(components.Client, cfg.LLM(), tracker, logger),
		Forms:   forms,
		Frames:  screenshot.NewCapturer(page, logger, shotCfg.Width, shotCfg.Quality, shotCfg.FullPage),
		Marker:  marker.New(page, logger),
		Archive: archive,
		Journal: components.Journal,
		Usage:   tracker,
		Profile: components.Profile.Condense(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	res, runErr := a.Run(ctx, url)

	logger.Info("Token usage summary.", res.Usage.Fields()...)
	fmt.Fprintf(out, "\nRun %s finished: %s after %d steps.\n", res.RunID, res.Outcome, res.Steps)
	if res.Reason != "" {
		fmt.Fprintf(out, "Reason: %s\n", res.Reason)
	}
	fmt.Fprintf(out, "Tokens: %d (estimated cost $%.4f)\n", res.Usage.TotalTokens, res.Usage.TotalCost)

	if runErr != nil {
		return &ExitError{Code: ExitFailed, Outcome: res.Outcome, Err: runErr}
	}
	if code := exitCodeFor(res.Outcome); code != ExitCompleted {
		return &ExitError{Code: code, Outcome: res.Outcome}
	}
	return nil
}
