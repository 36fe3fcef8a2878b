/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"spellcards/internal/codec"
	"spellcards/internal/config"
	"spellcards/internal/domain"
	"spellcards/internal/export"
	"spellcards/internal/inbox"
	"spellcards/internal/layout"
	"spellcards/internal/session"
	"spellcards/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// version needs neither config nor logging
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "spellcards", version.String())
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [group [card]]",
		Short: "List the workspace or show one group or card",
		Long: `Without arguments show lists every group with its cards. With a group
index it prints the group defaults; with a group and card index it prints the
effective fields of that card. Indices start at 0.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				in := session.NewInterp(s, cmd.OutOrStdout())
				if len(args) == 0 {
					return in.Exec(cmd.Context(), []string{"ls"})
				}
				return in.Exec(cmd.Context(), append([]string{"show"}, args...))
			})
		},
	}
}

func newDoCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "do [command [args...]]",
		Short: "Run one shell command or a script file against the workspace",
		Long: `do runs a single shell command, for example

  spellcards do set 0 0 name "Magic Missile"

or, with --file, every command of a script. Script lines starting with # or ;
are comments and lines indented by two or more spaces continue the previous
line. A script stops at its first failing command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && len(args) == 0 {
				return errors.New("nothing to do: give a command or --file")
			}
			var script string
			if file != "" {
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				script = data
			}
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				in := session.NewInterp(s, cmd.OutOrStdout())
				if script != "" {
					if err := in.RunScript(cmd.Context(), script); err != nil {
						return err
					}
				}
				if len(args) > 0 {
					err := in.Exec(cmd.Context(), args)
					if errors.Is(err, session.ErrQuit) {
						return nil
					}
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "script file to run (- for stdin)")
	// everything after the verb belongs to the shell command, "-1" included
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Edit the workspace interactively",
		Long: `shell reads commands line by line until quit or end of input. Every
change is saved immediately. Type help for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.withSession(ctx, func(s *session.Session) error {
				in := session.NewInterp(s, cmd.OutOrStdout())
				return in.Run(ctx, bufio.NewReader(cmd.InOrStdin()), true)
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import card, group or workspace JSON files",
		Long: `import adds the content of spell card JSON files to the workspace. A
workspace or group file appends groups; a card file needs a selected group and
is appended to it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				return session.NewInterp(s, cmd.OutOrStdout()).Exec(cmd.Context(), append([]string{"import"}, args...))
			})
		},
	}
}

// parseTarget reads "all", "g" or "g.c" into a selection.
func parseTarget(s string) (domain.Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return domain.NoSelection(), nil
	}
	gs, cs, isCard := strings.Cut(s, ".")
	g, err := strconv.Atoi(gs)
	if err != nil || g < 0 {
		return domain.Selection{}, fmt.Errorf("invalid target %q: want all, <group> or <group>.<card>", s)
	}
	if !isCard {
		return domain.GroupSelection(g), nil
	}
	c, err := strconv.Atoi(cs)
	if err != nil || c < 0 {
		return domain.Selection{}, fmt.Errorf("invalid target %q: want all, <group> or <group>.<card>", s)
	}
	return domain.CardSelection(g, c), nil
}

const targetHelp = "what to export: all, <group> or <group>.<card>"

func newExportCmd(a *app) *cobra.Command {
	var out, target string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the workspace, a group or a card as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := parseTarget(target)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				f, err := codec.ExportSelection(s.Store, sel)
				if err != nil {
					return err
				}
				data, err := codec.Marshal(f)
				if err != nil {
					return err
				}
				path := out
				if path == "" {
					path = filepath.Join(s.Config.Export.OutDir, codec.FileName(f))
				}
				if path == "-" {
					_, err := cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("ensure out dir: %w", err)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (- for stdout)")
	cmd.Flags().StringVarP(&target, "target", "t", "all", targetHelp)
	return cmd
}

// writeTo creates path and fills it with fn, removing the file on failure.
func writeTo(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func newRenderCmd(a *app) *cobra.Command {
	var out, target string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render card faces into a zip of SVG and PNG images",
		Long: `render writes one folder per card holding the front and back faces as
SVG and PNG plus the combined row and column images.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := parseTarget(target)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				path := out
				if path == "" {
					path = filepath.Join(s.Config.Export.OutDir, "cards.zip")
				}
				if err := writeTo(path, func(w io.Writer) error { return s.Pipeline.Render(cmd.Context(), sel, w) }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output zip file")
	cmd.Flags().StringVarP(&target, "target", "t", "all", targetHelp)
	return cmd
}

func newPrintCmd(a *app) *cobra.Command {
	var out, target, mode string
	var guides bool
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Lay out cards on US Letter pages as a PDF",
		Long: `print arranges card faces for printing. double puts nine cards per sheet
with the backs mirrored on the following page for duplex printing. foldable
puts three cards per page with front and back side by side, ready to fold.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := layout.ParseMode(mode)
			if err != nil {
				return err
			}
			sel, err := parseTarget(target)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				s.Pipeline.PDF.Guides = guides
				path := out
				if path == "" {
					path = filepath.Join(s.Config.Export.OutDir, "cards-"+string(m)+".pdf")
				}
				if err := writeTo(path, func(w io.Writer) error { return s.Pipeline.Print(cmd.Context(), m, sel, w) }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(layout.ModeDoubleSided), "page layout: double or foldable")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PDF file")
	cmd.Flags().StringVarP(&target, "target", "t", "all", targetHelp)
	cmd.Flags().BoolVar(&guides, "guides", true, "draw cut guides around each card")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var preset, out, target string
	var formats []string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Export a preset set of outputs in one go",
		Long: `batch renders the target once and writes every format of a preset into
<out>/<preset>/. The web preset writes the image zip; the print preset writes
the double-sided and the foldable PDF.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := parseTarget(target)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				dir := out
				if dir == "" {
					dir = s.Config.Export.OutDir
				}
				files, err := s.Pipeline.BatchExport(cmd.Context(), export.BatchOptions{
					Preset:  export.PresetName(strings.ToLower(preset)),
					Formats: formats,
					Target:  sel,
					OutDir:  dir,
				})
				for _, f := range files {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", string(export.PresetPrint), "preset: web or print")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "override the preset formats (zip, double, foldable)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "base output directory")
	cmd.Flags().StringVarP(&target, "target", "t", "all", targetHelp)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Import JSON files dropped into a folder",
		Long: `watch imports every JSON file that appears in dir until interrupted.
Imported files are moved to dir/imported, files that could not be imported to
dir/rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			ok := colorize.New(colorize.FgGreen)
			bad := colorize.New(colorize.FgRed)
			return a.withSession(ctx, func(s *session.Session) error {
				w, err := inbox.New(args[0], s.Store,
					inbox.WithDebounce(s.Config.Inbox.Debounce()),
					inbox.OnImport(func(path string, errs []error) {
						if len(errs) == 0 {
							ok.Fprintf(out, "imported %s\n", filepath.Base(path))
							return
						}
						bad.Fprintf(out, "rejected %s: %v\n", filepath.Base(path), errors.Join(errs...))
					}))
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "watching %s, press Ctrl+C to stop\n", w.Dir())
				<-ctx.Done()
				w.Stop()
				st := w.Stats()
				fmt.Fprintf(out, "%d imported, %d rejected\n", st.Imported, st.Rejected)
				return nil
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var revert int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored versions of the workspace or revert to one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				in := session.NewInterp(s, cmd.OutOrStdout())
				if revert >= 0 {
					return in.Exec(cmd.Context(), []string{"revert", strconv.Itoa(revert)})
				}
				return in.Exec(cmd.Context(), []string{"snapshots", strconv.Itoa(limit)})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of versions to list")
	cmd.Flags().IntVar(&revert, "revert", -1, "revert to the version with this index")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p := a.configPath
				if p == "" {
					var err error
					if p, err = config.ConfigPath(); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(a.cfg); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:   "save",
			Short: "Write the effective configuration to the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return config.Save(a.configPath, a.cfg)
			},
		},
		&cobra.Command{
			Use:   "set-password",
			Short: "Store the postgres password in the OS keyring, read from stdin",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				pw := strings.TrimRight(line, "\r\n")
				if pw == "" {
					return config.ClearStoragePassword()
				}
				return config.SetStoragePassword(pw)
			},
		},
	)
	return cmd
}
