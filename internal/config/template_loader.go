package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"atsforge/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// TemplateSource reports where the active default template came from
type TemplateSource string

const (
	TemplateSourceFile    TemplateSource = "file"
	TemplateSourceConfig  TemplateSource = "config"
	TemplateSourceBuiltin TemplateSource = "builtin"
)

// TemplateWatcher serves the process-wide default optimization instruction
// template. When a template file is configured it is watched with fsnotify
// and re-read on change, so operators can tune the template without a
// restart. Reads are safe for concurrent use.
type TemplateWatcher struct {
	mu sync.RWMutex

	filePath      string
	configValue   string
	builtin       string
	current       string
	source        TemplateSource
	lastLoadedAt  time.Time
	debounceDelay time.Duration
	debounceTimer *time.Timer

	fsWatcher *fsnotify.Watcher
	stopChan  chan struct{}
	running   bool

	logger *errors.Logger
}

// NewTemplateWatcher resolves the initial template value. Precedence:
// template file > config value > builtin default.
func NewTemplateWatcher(cfg AIConfig, builtin string, logger *errors.Logger) (*TemplateWatcher, error) {
	tw := &TemplateWatcher{
		filePath:      cfg.TemplateFile,
		configValue:   cfg.DefaultTemplate,
		builtin:       builtin,
		debounceDelay: time.Second,
		stopChan:      make(chan struct{}),
		logger:        logger,
	}

	if err := tw.resolve(); err != nil {
		return nil, err
	}

	return tw, nil
}

// resolve loads the template from the highest-precedence available source
func (tw *TemplateWatcher) resolve() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.filePath != "" {
		content, err := os.ReadFile(tw.filePath)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", tw.filePath, err)
		}
		text := strings.TrimSpace(string(content))
		if text == "" {
			return fmt.Errorf("template file %s is empty", tw.filePath)
		}
		tw.current = text
		tw.source = TemplateSourceFile
		tw.lastLoadedAt = time.Now()
		return nil
	}

	if tw.configValue != "" {
		tw.current = tw.configValue
		tw.source = TemplateSourceConfig
		return nil
	}

	tw.current = tw.builtin
	tw.source = TemplateSourceBuiltin
	return nil
}

// Get returns the active default template
func (tw *TemplateWatcher) Get() string {
	tw.mu.RLock()
	defer tw.mu.RUnlock()
	return tw.current
}

// Source returns where the active template was loaded from
func (tw *TemplateWatcher) Source() TemplateSource {
	tw.mu.RLock()
	defer tw.mu.RUnlock()
	return tw.source
}

// Start begins watching the template file for changes. No-op when no file
// is configured.
func (tw *TemplateWatcher) Start() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.filePath == "" {
		return nil
	}
	if tw.running {
		return fmt.Errorf("template watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template file watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops the
	// watch when the file itself is registered.
	dir := filepath.Dir(tw.filePath)
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil && tw.logger != nil {
			tw.logger.LogError(closeErr, "Failed to close template watcher during cleanup")
		}
		return fmt.Errorf("failed to watch template directory %s: %w", dir, err)
	}

	tw.fsWatcher = watcher
	tw.running = true
	go tw.watchLoop()

	if tw.logger != nil {
		tw.logger.Info("Template file watcher started", "file", tw.filePath)
	}
	return nil
}

// watchLoop processes file system events with debouncing
func (tw *TemplateWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-tw.fsWatcher.Events:
			if !ok {
				return
			}
			if tw.isTemplateEvent(event) {
				tw.scheduleReload()
			}
		case err, ok := <-tw.fsWatcher.Errors:
			if !ok {
				return
			}
			if tw.logger != nil {
				tw.logger.LogError(err, "Template file watcher error")
			}
		case <-tw.stopChan:
			return
		}
	}
}

// isTemplateEvent reports whether the event concerns the watched template file
func (tw *TemplateWatcher) isTemplateEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(tw.filePath) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

// scheduleReload debounces rapid successive events into one reload
func (tw *TemplateWatcher) scheduleReload() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.debounceTimer != nil {
		tw.debounceTimer.Stop()
	}
	tw.debounceTimer = time.AfterFunc(tw.debounceDelay, tw.reload)
}

// reload re-reads the template file, keeping the previous value on failure
func (tw *TemplateWatcher) reload() {
	content, err := os.ReadFile(tw.filePath)
	if err != nil {
		if tw.logger != nil {
			tw.logger.LogError(err, "Failed to reload template file, keeping previous template",
				"file", tw.filePath)
		}
		return
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		if tw.logger != nil {
			tw.logger.Warn("Reloaded template file is empty, keeping previous template",
				"file", tw.filePath)
		}
		return
	}

	tw.mu.Lock()
	tw.current = text
	tw.source = TemplateSourceFile
	tw.lastLoadedAt = time.Now()
	tw.mu.Unlock()

	if tw.logger != nil {
		tw.logger.Info("Default instruction template reloaded",
			"file", tw.filePath,
			"length", len(text))
	}
}

// Stop halts the watcher
func (tw *TemplateWatcher) Stop() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !tw.running {
		return nil
	}

	close(tw.stopChan)
	if tw.debounceTimer != nil {
		tw.debounceTimer.Stop()
	}
	tw.running = false

	if tw.fsWatcher != nil {
		return tw.fsWatcher.Close()
	}
	return nil
}

// IsRunning reports whether the watcher is active
func (tw *TemplateWatcher) IsRunning() bool {
	tw.mu.RLock()
	defer tw.mu.RUnlock()
	return tw.running
}
