package screenshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Archive writes frames to a directory and keeps only the newest KeepLast
// of them. A zero Archive (empty dir) discards everything.
type Archive struct {
	dir      string
	keepLast int
	logger   *zap.Logger
	now      func() time.Time
}

// NewArchive creates the archive directory if needed. keepLast <= 0 keeps
// every frame.
func NewArchive(dir string, keepLast int, logger *zap.Logger) (*Archive, error) {
	a := &Archive{dir: dir, keepLast: keepLast, logger: logger.Named("screenshot_archive"), now: time.Now}
	if dir == "" {
		return a, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return a, nil
}

// Save writes one frame and prunes old ones. It returns the file path, or
// "" when archiving is disabled.
func (a *Archive) Save(step int, tag string, jpeg []byte) (string, error) {
	if a.dir == "" {
		return "", nil
	}
	name := fmt.Sprintf("step_%03d_%s", step, a.now().Format("20060102_150405"))
	if tag != "" {
		name += "_" + unsafeChars.ReplaceAllString(tag, "_")
	}
	path := filepath.Join(a.dir, name+".jpg")
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	a.Prune()
	return path, nil
}

// Prune removes all but the newest keepLast JPEGs. Failures are logged.
func (a *Archive) Prune() {
	if a.dir == "" || a.keepLast <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(a.dir, "*.jpg"))
	if err != nil || len(matches) <= a.keepLast {
		return
	}

	type file struct {
		path string
		mod  time.Time
	}
	files := make([]file, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, file{m, info.ModTime()})
	}
	// Newest first; names carry the step so they break mtime ties.
	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path > files[j].path
		}
		return files[i].mod.After(files[j].mod)
	})
	for _, f := range files[min(a.keepLast, len(files)):] {
		if err := os.Remove(f.path); err != nil {
			a.logger.Debug("Failed to prune screenshot.", zap.String("path", f.path), zap.Error(err))
		}
	}
}
