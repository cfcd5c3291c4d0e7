package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/visionfill/internal/config"
)

func TestManager_PrepareLaunchOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	cfg.Headless = true
	cfg.Args = append(cfg.Args, "--no-sandbox")

	m := NewManager(cfg, zaptest.NewLogger(t))
	opts := m.prepareLaunchOptions()

	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)
	assert.Contains(t, opts.Args, "--disable-blink-features=AutomationControlled")
	assert.Contains(t, opts.Args, "--disable-dev-shm-usage")

	count := 0
	for _, a := range opts.Args {
		if a == "--no-sandbox" {
			count++
		}
	}
	assert.Equal(t, 1, count, "duplicate launch args should be collapsed")
}

func TestManager_ContextOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	m := NewManager(cfg, zaptest.NewLogger(t))

	opts := m.contextOptions()
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, 1280, opts.Viewport.Width)
	assert.Equal(t, 900, opts.Viewport.Height)
	require.NotNil(t, opts.UserAgent)
	assert.Contains(t, *opts.UserAgent, "Chrome/")

	cfg.ViewportWidth = 0
	cfg.UserAgent = ""
	opts = NewManager(cfg, zaptest.NewLogger(t)).contextOptions()
	assert.Nil(t, opts.Viewport)
	assert.Nil(t, opts.UserAgent)
}

func TestManager_ShutdownBeforeInit(t *testing.T) {
	m := NewManager(config.NewDefaultConfig().Browser(), zaptest.NewLogger(t))
	assert.NoError(t, m.Shutdown(context.Background()))
}
