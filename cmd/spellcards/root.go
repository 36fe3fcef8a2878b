/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"spellcards/internal/config"
	"spellcards/internal/crash"
	applog "spellcards/internal/log"
	"spellcards/internal/session"
)

// app carries the resolved configuration between cobra hooks and commands.
type app struct {
	configPath string
	backend    string
	path       string
	key        string
	follow     bool

	cfg config.AppConfig
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "spellcards",
		Short: "Edit, render and print two-sided spell cards",
		Long: `spellcards keeps a workspace of spell cards organized in groups with
shared defaults. It renders card faces as SVG and PNG, bundles them as a zip,
and lays them out on US Letter sheets for double-sided or foldable printing.

The workspace is saved after every change to the configured storage backend
(file, sqlite or postgres).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default is the per-user config path)")
	pf.StringVar(&a.backend, "backend", "", "storage backend: file, sqlite or postgres")
	pf.StringVar(&a.path, "path", "", "data directory for the file and sqlite backends")
	pf.StringVar(&a.key, "key", "", "storage key of the workspace")
	pf.BoolVar(&a.follow, "follow-selection", false, "keep the selection on the same item across moves and removals")

	root.AddCommand(
		newVersionCmd(),
		newShowCmd(a),
		newDoCmd(a),
		newShellCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newRenderCmd(a),
		newPrintCmd(a),
		newBatchCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the config, applies flag overrides and initializes logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Storage.Backend = a.backend
	}
	if cmd.Flags().Changed("path") {
		cfg.Storage.Path = a.path
	}
	if cmd.Flags().Changed("key") {
		cfg.Storage.Key = a.key
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	a.log = applog.WithComponent("cli")
	a.log.Debug("config loaded", slog.String("backend", cfg.Storage.Backend), slog.String("key", cfg.Storage.Key))
	return nil
}

// withSession opens the workspace, runs fn with panic recovery and closes
// the workspace again, which saves it.
func (a *app) withSession(ctx context.Context, fn func(*session.Session) error) (err error) {
	s, err := session.Open(ctx, a.cfg, session.WithFollowSelection(a.follow))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	defer crash.Recover(s.CrashTarget())
	return fn(s)
}
