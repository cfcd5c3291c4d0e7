// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Agent() config.AgentConfig {
	args := m.Called()
	return args.Get(0).(config.AgentConfig)
}

func (m *MockConfig) LLM() config.LLMConfig {
	args := m.Called()
	return args.Get(0).(config.LLMConfig)
}

func (m *MockConfig) Screenshot() config.ScreenshotConfig {
	args := m.Called()
	return args.Get(0).(config.ScreenshotConfig)
}

func (m *MockConfig) Files() config.FilesConfig {
	args := m.Called()
	return args.Get(0).(config.FilesConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool)           { m.Called(b) }
func (m *MockConfig) SetAgentMaxSteps(n int)              { m.Called(n) }
func (m *MockConfig) SetAgentActionDelay(d time.Duration) { m.Called(d) }
func (m *MockConfig) SetAgentEnableMarking(b bool)        { m.Called(b) }
func (m *MockConfig) SetFilesProfile(p string)            { m.Called(p) }
func (m *MockConfig) SetFilesResume(p string)             { m.Called(p) }
func (m *MockConfig) SetFilesCoverLetter(p string)        { m.Called(p) }

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

var _ schemas.LLMClient = (*MockLLMClient)(nil)

// Generate provides a mock function for LLM calls. A cancelled context
// short-circuits before the expectation is consulted.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.GenerationResponse), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Oracle Mock --

// MockOracle mocks the schemas.Oracle interface.
type MockOracle struct {
	mock.Mock
}

var _ schemas.Oracle = (*MockOracle)(nil)

func (m *MockOracle) Analyze(ctx context.Context, obs schemas.Observation) (schemas.Decision, error) {
	args := m.Called(ctx, obs)
	return args.Get(0).(schemas.Decision), args.Error(1)
}

// -- Run Journal Mock --

// MockRunJournal mocks the schemas.RunJournal interface.
type MockRunJournal struct {
	mock.Mock
}

var _ schemas.RunJournal = (*MockRunJournal)(nil)

func (m *MockRunJournal) StartRun(ctx context.Context, runID, url string, startedAt time.Time) error {
	return m.Called(ctx, runID, url, startedAt).Error(0)
}

func (m *MockRunJournal) RecordStep(ctx context.Context, step schemas.JournalStep) error {
	return m.Called(ctx, step).Error(0)
}

func (m *MockRunJournal) FinishRun(ctx context.Context, summary schemas.RunSummary) error {
	return m.Called(ctx, summary).Error(0)
}
