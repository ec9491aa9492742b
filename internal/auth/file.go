package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/starford/agora/internal/authz"
)

const reloadDebounce = 200 * time.Millisecond

// tokensFile is the on-disk layout of a tokens file.
type tokensFile struct {
	Tokens []Token `yaml:"tokens"`
}

// File serves tokens from a YAML file and swaps in a new table whenever the
// file changes. A file that fails to parse keeps the previous table.
type File struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Static]
}

// NewFile loads path. The initial load must succeed.
func NewFile(path string, logger *slog.Logger) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve tokens file: %w", err)
	}
	f := &File{path: abs, logger: logger}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Lookup implements Provider.
func (f *File) Lookup(token string) (authz.Principal, bool) {
	return f.current.Load().Lookup(token)
}

// Reload re-reads the tokens file. Values are taken literally: unlike the
// main config, ${VAR} references are not expanded, so tokens may contain '$'.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("auth: read tokens file: %w", err)
	}
	var tf tokensFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("auth: parse tokens file %s: %w", f.path, err)
	}
	s, err := NewStatic(tf.Tokens)
	if err != nil {
		return err
	}
	f.current.Store(s)
	return nil
}

// Watch reloads the tokens file on change until ctx is cancelled. The
// parent directory is watched because editors often replace files by
// rename.
func (f *File) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return err
	}
	f.logger.Info("auth: watching tokens file", slog.String("path", f.path))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			f.logger.Info("auth: watcher stopped")
			return nil

		case <-timerCh:
			if err := f.Reload(); err != nil {
				f.logger.Warn("auth: reload failed, keeping previous tokens", slog.String("error", err.Error()))
				continue
			}
			f.logger.Info("auth: tokens reloaded", slog.Int("count", f.current.Load().Len()))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("auth: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
