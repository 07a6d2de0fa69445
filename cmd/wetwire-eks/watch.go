package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type watchOptions struct {
	synth    synthOptions
	debounce time.Duration
}

// newWatchCmd creates the "watch" subcommand for re-synthesizing on
// configuration changes.
func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Re-synthesize manifests when configuration files change",
		Long: `Watch monitors the context file, the env files and any extra files
given, and re-synthesizes the manifests after every change.

Rapid changes are debounced. An invalid configuration is reported and the
previous output is left in place.

Examples:
    wetwire-eks watch --context cdk.json
    wetwire-eks watch --context cdk.json --env-file .env --debounce 1s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := a.configFiles(args)
			if len(files) == 0 {
				return fmt.Errorf("nothing to watch: pass --context or file arguments")
			}
			return a.runWatch(cmd, cmd.OutOrStdout(), files, opts)
		},
	}

	addSynthFlags(cmd, &opts.synth)
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")

	return cmd
}

// runWatch monitors files and re-runs synth on changes.
func (a *app) runWatch(cmd *cobra.Command, w io.Writer, files []string, opts watchOptions) error {
	opts.synth.format = "text"

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	// Editors replace files on save, so the parent directory is watched and
	// events are filtered by name.
	targets, dirs, err := watchTargets(files)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	for _, f := range files {
		a.log.Info("watching", zap.String("file", f))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a.resynth(cmd, w, opts.synth)

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRelevant(event, targets) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			a.log.Info("change detected, re-synthesizing")
			a.resynth(cmd, w, opts.synth)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Error("watch error", zap.Error(err))

		case <-sigChan:
			a.log.Info("stopping watch")
			return nil
		}
	}
}

// configFiles lists the files that feed the configuration, followed by extra.
func (a *app) configFiles(extra []string) []string {
	var files []string
	if a.contextFile != "" {
		files = append(files, a.contextFile)
	}
	files = append(files, a.envFiles...)
	return append(files, extra...)
}

func (a *app) resynth(cmd *cobra.Command, w io.Writer, opts synthOptions) {
	if err := a.runSynth(cmd, w, opts); err != nil {
		a.log.Error("synth failed", zap.Error(err))
	}
}

// watchTargets resolves files to absolute paths and the set of directories
// holding them.
func watchTargets(files []string) (map[string]bool, []string, error) {
	targets := make(map[string]bool, len(files))
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, nil, err
		}
		targets[abs] = true
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return targets, dirs, nil
}

func isRelevant(event fsnotify.Event, targets map[string]bool) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return targets[abs]
}
