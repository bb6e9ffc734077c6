package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTemplateWatcherPrecedence(t *testing.T) {
	tempDir := t.TempDir()
	templateFile := filepath.Join(tempDir, "template.md")
	if err := os.WriteFile(templateFile, []byte("from file"), 0600); err != nil {
		t.Fatalf("Failed to create template file: %v", err)
	}

	tests := []struct {
		name       string
		cfg        AIConfig
		wantValue  string
		wantSource TemplateSource
	}{
		{
			name:       "file wins over config and builtin",
			cfg:        AIConfig{TemplateFile: templateFile, DefaultTemplate: "from config"},
			wantValue:  "from file",
			wantSource: TemplateSourceFile,
		},
		{
			name:       "config wins over builtin",
			cfg:        AIConfig{DefaultTemplate: "from config"},
			wantValue:  "from config",
			wantSource: TemplateSourceConfig,
		},
		{
			name:       "builtin as last resort",
			cfg:        AIConfig{},
			wantValue:  "builtin default",
			wantSource: TemplateSourceBuiltin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw, err := NewTemplateWatcher(tt.cfg, "builtin default", nil)
			if err != nil {
				t.Fatalf("NewTemplateWatcher failed: %v", err)
			}
			if got := tw.Get(); got != tt.wantValue {
				t.Errorf("Get() = %q, want %q", got, tt.wantValue)
			}
			if got := tw.Source(); got != tt.wantSource {
				t.Errorf("Source() = %q, want %q", got, tt.wantSource)
			}
		})
	}
}

func TestTemplateWatcherMissingFile(t *testing.T) {
	cfg := AIConfig{TemplateFile: filepath.Join(t.TempDir(), "nonexistent.md")}
	if _, err := NewTemplateWatcher(cfg, "builtin", nil); err == nil {
		t.Error("Expected error for missing template file")
	}
}

func TestTemplateWatcherEmptyFile(t *testing.T) {
	templateFile := filepath.Join(t.TempDir(), "empty.md")
	if err := os.WriteFile(templateFile, []byte("   \n"), 0600); err != nil {
		t.Fatalf("Failed to create template file: %v", err)
	}

	cfg := AIConfig{TemplateFile: templateFile}
	if _, err := NewTemplateWatcher(cfg, "builtin", nil); err == nil {
		t.Error("Expected error for empty template file")
	}
}

func TestTemplateWatcherReloadsOnChange(t *testing.T) {
	tempDir := t.TempDir()
	templateFile := filepath.Join(tempDir, "template.md")
	if err := os.WriteFile(templateFile, []byte("version one"), 0600); err != nil {
		t.Fatalf("Failed to create template file: %v", err)
	}

	tw, err := NewTemplateWatcher(AIConfig{TemplateFile: templateFile}, "builtin", nil)
	if err != nil {
		t.Fatalf("NewTemplateWatcher failed: %v", err)
	}
	tw.debounceDelay = 50 * time.Millisecond

	if err := tw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		if err := tw.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	}()

	if !tw.IsRunning() {
		t.Fatal("watcher should be running after Start")
	}

	if err := os.WriteFile(templateFile, []byte("version two"), 0600); err != nil {
		t.Fatalf("Failed to update template file: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if tw.Get() == "version two" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("template not reloaded, still %q", tw.Get())
}

func TestTemplateWatcherKeepsPreviousOnEmptyReload(t *testing.T) {
	tempDir := t.TempDir()
	templateFile := filepath.Join(tempDir, "template.md")
	if err := os.WriteFile(templateFile, []byte("original"), 0600); err != nil {
		t.Fatalf("Failed to create template file: %v", err)
	}

	tw, err := NewTemplateWatcher(AIConfig{TemplateFile: templateFile}, "builtin", nil)
	if err != nil {
		t.Fatalf("NewTemplateWatcher failed: %v", err)
	}

	if err := os.WriteFile(templateFile, []byte(""), 0600); err != nil {
		t.Fatalf("Failed to truncate template file: %v", err)
	}
	tw.reload()

	if got := tw.Get(); got != "original" {
		t.Errorf("Get() = %q, want previous value kept", got)
	}
}

func TestTemplateWatcherStartWithoutFile(t *testing.T) {
	tw, err := NewTemplateWatcher(AIConfig{DefaultTemplate: "x"}, "builtin", nil)
	if err != nil {
		t.Fatalf("NewTemplateWatcher failed: %v", err)
	}

	if err := tw.Start(); err != nil {
		t.Errorf("Start without a file should be a no-op, got: %v", err)
	}
	if tw.IsRunning() {
		t.Error("watcher should not run without a configured file")
	}
}
