package main

import (
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatchCmd(t *testing.T) {
	cmd := newWatchCmd(&app{})

	if cmd.Use != "watch [files...]" {
		t.Errorf("Use = %q, want 'watch [files...]'", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	for _, name := range []string{"debounce", "output", "layout", "chart"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
}

func TestDebounceDefault(t *testing.T) {
	cmd := newWatchCmd(&app{})

	flag := cmd.Flags().Lookup("debounce")
	if flag == nil {
		t.Fatal("missing --debounce flag")
	}
	if flag.DefValue != "500ms" {
		t.Errorf("debounce default = %q, want '500ms'", flag.DefValue)
	}
}

func TestWatch_NothingToWatch(t *testing.T) {
	_, err := execute(t, "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to watch")
}

func TestWatchTargets(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "cdk.json")
	b := filepath.Join(dir, "extra.yaml")

	targets, dirs, err := watchTargets([]string{a, b, a})
	require.NoError(t, err)
	assert.Len(t, targets, 2)
	assert.Equal(t, []string{dir}, dirs)

	assert.True(t, isRelevant(fsnotify.Event{Name: a, Op: fsnotify.Write}, targets))
	assert.True(t, isRelevant(fsnotify.Event{Name: b, Op: fsnotify.Create}, targets))
	assert.False(t, isRelevant(fsnotify.Event{Name: a, Op: fsnotify.Chmod}, targets))
	assert.False(t, isRelevant(fsnotify.Event{Name: filepath.Join(dir, "other.json"), Op: fsnotify.Write}, targets))
}

func TestConfigFiles(t *testing.T) {
	a := &app{contextFile: "cdk.json", envFiles: []string{".env", ".env.local"}}
	assert.Equal(t, []string{"cdk.json", ".env", ".env.local", "extra.yaml"}, a.configFiles([]string{"extra.yaml"}))

	assert.Empty(t, (&app{}).configFiles(nil))
}
