/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spellcards/internal/codec"
	"spellcards/internal/domain"
	"spellcards/internal/export"
	"spellcards/internal/layout"
	"spellcards/internal/storage"
)

// ErrQuit is returned by the quit command.
var ErrQuit = errors.New("quit")

// ErrUnknownCommand is wrapped by Exec for names it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// UsageError reports wrong arguments to a command.
type UsageError struct {
	Cmd   string
	Usage string
	Err   error
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (usage: %s)", e.Cmd, e.Err, e.Usage)
	}
	return "usage: " + e.Usage
}

func (e *UsageError) Unwrap() error { return e.Err }

// Interp runs text commands against a Session. Every verb is a cobra
// command under one root; lines are tokenized by Split and dispatched with
// SetArgs and ExecuteContext.
type Interp struct {
	s   *Session
	out io.Writer

	head *color.Color
	warn *color.Color
	bad  *color.Color
}

// NewInterp returns an interpreter writing its output to out.
func NewInterp(s *Session, out io.Writer) *Interp {
	in := &Interp{
		s:    s,
		out:  out,
		head: color.New(color.FgCyan, color.Bold),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed),
	}
	return in
}

// arity wraps a cobra argument check so that failures become *UsageError.
func arity(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &UsageError{Cmd: cmd.Name(), Usage: cmd.Use, Err: err}
		}
		return nil
	}
}

// run adapts a verb handler to cobra's RunE.
func run(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, args)
	}
}

// verb builds a shell command. Flag parsing is off so that values such as
// "-1" or "--" reach the handler untouched.
func verb(use, short string, args cobra.PositionalArgs, fn func(context.Context, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		Args:               arity(args),
		DisableFlagParsing: true,
		RunE:               run(fn),
	}
}

// Command returns a fresh command tree for the shell verbs. cobra keeps the
// first context it hands to a subcommand, so every Exec builds its own tree.
func (in *Interp) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "spellcards",
		Short:         "Spell card workspace shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(in.out)
	root.SetErr(in.out)
	root.SetHelpCommand(verb("help", "list commands", cobra.NoArgs, func(context.Context, []string) error {
		in.help(root)
		return nil
	}))

	quit := verb("quit", "leave the shell", cobra.NoArgs, func(context.Context, []string) error { return ErrQuit })
	quit.Aliases = []string{"exit"}

	root.AddCommand(
		verb("ls [group]", "list groups, or the cards of one group", cobra.MaximumNArgs(1), in.list),
		verb("show [group [card]]", "print the effective fields of a card or group defaults", cobra.MaximumNArgs(2), in.show),
		verb("search <text...>", "find groups and cards by name", cobra.MinimumNArgs(1), in.search),
		verb("add-group [name...]", "append a group", cobra.ArbitraryArgs, in.addGroup),
		verb("rm-group <group>", "remove a group", cobra.ExactArgs(1), in.rmGroup),
		verb("mv-group <from> <to>", "move a group", cobra.ExactArgs(2), in.mvGroup),
		verb("dup-group <group>", "duplicate a group", cobra.ExactArgs(1), in.dupGroup),
		verb("rename <group> <name...>", "rename a group", cobra.MinimumNArgs(2), in.rename),
		verb("default <group> <field> <value...>", "set a group default", cobra.MinimumNArgs(3), in.setDefault),
		verb("undefault <group> <field>", "clear a group default", cobra.ExactArgs(2), in.unsetDefault),
		verb("add-card <group> [name...]", "append a card and select it", cobra.MinimumNArgs(1), in.addCard),
		verb("rm-card <group> <card>", "remove a card", cobra.ExactArgs(2), in.rmCard),
		verb("mv-card <group> <from> <to>", "move a card inside its group", cobra.ExactArgs(3), in.mvCard),
		verb("dup-card <group> <card>", "duplicate a card", cobra.ExactArgs(2), in.dupCard),
		verb("set <group> <card> <field> <value...>", "set a card field", cobra.MinimumNArgs(4), in.set),
		verb("unset <group> <card> <field>", "clear a card field so the default applies", cobra.ExactArgs(3), in.unset),
		verb("select [none | <group> [card]]", "change the selection", cobra.MaximumNArgs(2), in.sel),
		verb("import <file...>", "import export files", cobra.MinimumNArgs(1), in.importFiles),
		verb("export [file]", "write the selection as an export file", cobra.MaximumNArgs(1), in.exportFile),
		verb("render [file.zip]", "write rendered faces of the selection as a zip", cobra.MaximumNArgs(1), in.render),
		verb("print <double|foldable> [file.pdf]", "write a print PDF of the selection", cobra.RangeArgs(1, 2), in.print),
		verb("batch <print|web> [dir]", "run an export preset on the selection", cobra.RangeArgs(1, 2), in.batch),
		verb("undo", "undo the last change", cobra.NoArgs, in.undo),
		verb("redo", "redo the last undone change", cobra.NoArgs, in.redo),
		verb("snapshots [limit]", "list stored versions of the workspace", cobra.MaximumNArgs(1), in.snapshots),
		verb("revert <n>", "load stored version n (0 is the newest)", cobra.ExactArgs(1), in.revert),
		verb("save", "save now", cobra.NoArgs, in.save),
		quit,
	)
	root.InitDefaultHelpCmd()
	return root
}

// Exec runs one command given as arguments.
func (in *Interp) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	args = append([]string{strings.ToLower(args[0])}, args[1:]...)
	root := in.Command()
	if cmd, _, err := root.Find(args); err != nil || cmd == root || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("%w %q, try help", ErrUnknownCommand, args[0])
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// ExecLine tokenizes line and runs it.
func (in *Interp) ExecLine(ctx context.Context, line string) error {
	args, _, err := Split(line)
	if err != nil {
		return err
	}
	return in.Exec(ctx, args)
}

// RunScript runs every command of a script and stops at the first failure.
func (in *Interp) RunScript(ctx context.Context, script string) error {
	lines, perrs := ParseScript(script)
	if len(perrs) > 0 {
		errs := make([]error, len(perrs))
		for i, e := range perrs {
			errs[i] = e
		}
		return errors.Join(errs...)
	}
	for _, l := range lines {
		if err := in.Exec(ctx, l.Args); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			return fmt.Errorf("line %d: %w", l.No, err)
		}
	}
	return nil
}

// Run reads commands from r until EOF, quit or ctx is done. Failed
// commands are reported on the output and do not end the loop. With
// prompt set a prompt is printed before each line.
func (in *Interp) Run(ctx context.Context, r io.Reader, prompt bool) error {
	sc := bufio.NewScanner(r)
	for {
		if prompt {
			fmt.Fprint(in.out, "> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		err := in.ExecLine(ctx, sc.Text())
		switch {
		case err == nil:
		case errors.Is(err, ErrQuit):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			in.bad.Fprintf(in.out, "error: %v\n", err)
		}
	}
}

func (in *Interp) help(root *cobra.Command) {
	for _, c := range root.Commands() {
		fmt.Fprintf(in.out, "  %-40s %s\n", c.Use, c.Short)
	}
	fmt.Fprintf(in.out, "fields: %s\n", fieldList())
}

func fieldList() string {
	parts := make([]string, len(domain.Fields))
	for i, f := range domain.Fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func index(cmd, what, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &UsageError{Cmd: cmd, Usage: what + " must be a number", Err: err}
	}
	return n, nil
}

func indices(cmd string, args []string, what ...string) ([]int, error) {
	out := make([]int, len(what))
	for i, w := range what {
		n, err := index(cmd, w, args[i])
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (in *Interp) list(_ context.Context, args []string) error {
	sel := in.s.Store.Selection()
	if len(args) == 1 {
		g, err := index("ls", "group", args[0])
		if err != nil {
			return err
		}
		grp, err := in.s.Store.Group(g)
		if err != nil {
			return err
		}
		in.head.Fprintf(in.out, "%s\n", grp.Name)
		for c, card := range grp.Cards() {
			mark := " "
			if sel.IsCard() && sel.Group == g && sel.Card == c {
				mark = "*"
			}
			fmt.Fprintf(in.out, "%s [%d.%d] %s\n", mark, g, c, card.Name())
		}
		return nil
	}
	groups := in.s.Store.Groups()
	if len(groups) == 0 {
		fmt.Fprintln(in.out, "no groups")
		return nil
	}
	for g, grp := range groups {
		mark := " "
		if sel.HasGroup() && sel.Group == g {
			mark = "*"
		}
		fmt.Fprintf(in.out, "%s [%d] %s (%d cards)\n", mark, g, grp.Name, grp.Len())
	}
	return nil
}

func (in *Interp) printCard(title string, c domain.Card) {
	in.head.Fprintf(in.out, "%s\n", title)
	for _, f := range domain.Fields {
		if v, ok := c.Get(f); ok {
			fmt.Fprintf(in.out, "  %-18s %s\n", f, v)
		}
	}
}

func (in *Interp) show(_ context.Context, args []string) error {
	switch len(args) {
	case 0:
		c := in.s.Store.SelectedCard()
		in.printCard(c.Name(), c)
		return nil
	case 1:
		g, err := index("show", "group", args[0])
		if err != nil {
			return err
		}
		grp, err := in.s.Store.Group(g)
		if err != nil {
			return err
		}
		in.printCard(grp.Name+" (defaults)", grp.Defaults)
		return nil
	}
	ix, err := indices("show", args, "group", "card")
	if err != nil {
		return err
	}
	c, err := in.s.Store.EffectiveCard(ix[0], ix[1])
	if err != nil {
		return err
	}
	in.printCard(c.Name(), c)
	return nil
}

func (in *Interp) search(_ context.Context, args []string) error {
	matches := in.s.Store.Search(strings.Join(args, " "))
	if len(matches) == 0 {
		fmt.Fprintln(in.out, "no matches")
	}
	for _, m := range matches {
		if m.Card < 0 {
			fmt.Fprintf(in.out, "  [%d] %s\n", m.Group, m.Name)
		} else {
			fmt.Fprintf(in.out, "  [%d.%d] %s\n", m.Group, m.Card, m.Name)
		}
	}
	return nil
}

func (in *Interp) addGroup(_ context.Context, args []string) error {
	name := strings.Join(args, " ")
	if name == "" {
		name = domain.NewGroupName(in.s.Store.Len() + 1)
	}
	i := in.s.Store.AddGroup(domain.NewGroup(name, nil))
	fmt.Fprintf(in.out, "added group [%d] %s\n", i, name)
	return nil
}

func (in *Interp) rmGroup(_ context.Context, args []string) error {
	g, err := index("rm-group", "group", args[0])
	if err != nil {
		return err
	}
	grp, err := in.s.Store.RemoveGroup(g)
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "removed group %s\n", grp.Name)
	return nil
}

func (in *Interp) mvGroup(_ context.Context, args []string) error {
	ix, err := indices("mv-group", args, "from", "to")
	if err != nil {
		return err
	}
	return in.s.Store.MoveGroup(ix[0], ix[1])
}

func (in *Interp) dupGroup(_ context.Context, args []string) error {
	g, err := index("dup-group", "group", args[0])
	if err != nil {
		return err
	}
	i, err := in.s.Store.DuplicateGroup(g)
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "added group [%d]\n", i)
	return nil
}

func (in *Interp) rename(_ context.Context, args []string) error {
	g, err := index("rename", "group", args[0])
	if err != nil {
		return err
	}
	return in.s.Store.RenameGroup(g, strings.Join(args[1:], " "))
}

func (in *Interp) setDefault(_ context.Context, args []string) error {
	g, err := index("default", "group", args[0])
	if err != nil {
		return err
	}
	f, err := domain.ParseField(args[1])
	if err != nil {
		return err
	}
	if err := in.s.Store.EditDefaults(g, f, domain.Str(strings.Join(args[2:], " "))); err != nil {
		return err
	}
	if grp, err := in.s.Store.Group(g); err == nil {
		in.warnInvalid(grp.Defaults)
	}
	return nil
}

func (in *Interp) unsetDefault(_ context.Context, args []string) error {
	g, err := index("undefault", "group", args[0])
	if err != nil {
		return err
	}
	f, err := domain.ParseField(args[1])
	if err != nil {
		return err
	}
	return in.s.Store.EditDefaults(g, f, nil)
}

func (in *Interp) addCard(_ context.Context, args []string) error {
	g, err := index("add-card", "group", args[0])
	if err != nil {
		return err
	}
	card := domain.Card{}
	if name := strings.Join(args[1:], " "); name != "" {
		card[domain.FieldName] = name
	}
	c, err := in.s.Store.AddCard(g, card)
	if err != nil {
		return err
	}
	in.s.Store.SelectCard(g, c)
	fmt.Fprintf(in.out, "added card [%d.%d]\n", g, c)
	return nil
}

func (in *Interp) rmCard(_ context.Context, args []string) error {
	ix, err := indices("rm-card", args, "group", "card")
	if err != nil {
		return err
	}
	c, err := in.s.Store.RemoveCard(ix[0], ix[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "removed card %s\n", c.Name())
	return nil
}

func (in *Interp) mvCard(_ context.Context, args []string) error {
	ix, err := indices("mv-card", args, "group", "from", "to")
	if err != nil {
		return err
	}
	return in.s.Store.MoveCard(ix[0], ix[1], ix[2])
}

func (in *Interp) dupCard(_ context.Context, args []string) error {
	ix, err := indices("dup-card", args, "group", "card")
	if err != nil {
		return err
	}
	c, err := in.s.Store.DuplicateCard(ix[0], ix[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "added card [%d.%d]\n", ix[0], c)
	return nil
}

func (in *Interp) set(_ context.Context, args []string) error {
	ix, err := indices("set", args, "group", "card")
	if err != nil {
		return err
	}
	f, err := domain.ParseField(args[2])
	if err != nil {
		return err
	}
	if err := in.s.Store.EditCard(ix[0], ix[1], f, domain.Str(strings.Join(args[3:], " "))); err != nil {
		return err
	}
	if c, err := in.s.Store.EffectiveCard(ix[0], ix[1]); err == nil {
		in.warnInvalid(c)
	}
	return nil
}

func (in *Interp) unset(_ context.Context, args []string) error {
	ix, err := indices("unset", args, "group", "card")
	if err != nil {
		return err
	}
	f, err := domain.ParseField(args[2])
	if err != nil {
		return err
	}
	return in.s.Store.EditCard(ix[0], ix[1], f, nil)
}

func (in *Interp) warnInvalid(c domain.Card) {
	if err := c.Validate(); err != nil {
		in.warn.Fprintf(in.out, "warning: %v\n", err)
	}
}

func (in *Interp) sel(_ context.Context, args []string) error {
	switch {
	case len(args) == 0 || strings.EqualFold(args[0], "none"):
		in.s.Store.SelectNone()
	case len(args) == 1:
		g, err := index("select", "group", args[0])
		if err != nil {
			return err
		}
		in.s.Store.SelectGroup(g)
	default:
		ix, err := indices("select", args, "group", "card")
		if err != nil {
			return err
		}
		in.s.Store.SelectCard(ix[0], ix[1])
	}
	fmt.Fprintf(in.out, "selection: %v\n", in.s.Store.Selection())
	return nil
}

func (in *Interp) importFiles(_ context.Context, args []string) error {
	files := make([]codec.Dropped, 0, len(args))
	for _, p := range args {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		files = append(files, codec.Dropped{Name: filepath.Base(p), Data: data})
	}
	errs := codec.ImportDropped(in.s.Store, files)
	for _, err := range errs {
		in.warn.Fprintf(in.out, "skipped: %v\n", err)
	}
	fmt.Fprintf(in.out, "imported %d of %d files\n", len(files)-len(errs), len(files))
	if len(errs) == len(files) {
		return errors.Join(errs...)
	}
	return nil
}

func (in *Interp) outPath(args []string, i int, def string) string {
	if len(args) > i {
		return args[i]
	}
	return filepath.Join(in.s.Config.Export.OutDir, def)
}

func (in *Interp) exportFile(_ context.Context, args []string) error {
	f, err := codec.ExportSelection(in.s.Store, in.s.Store.Selection())
	if err != nil {
		return err
	}
	data, err := codec.Marshal(f)
	if err != nil {
		return err
	}
	path := in.outPath(args, 0, codec.FileName(f))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(in.out, "wrote %s\n", path)
	return nil
}

// writeOut creates path and fills it with fn; the file is removed when fn
// fails.
func writeOut(path string, fn func(io.Writer) error) error {
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

func (in *Interp) render(ctx context.Context, args []string) error {
	path := in.outPath(args, 0, "cards.zip")
	target := in.s.Store.Selection()
	if err := writeOut(path, func(w io.Writer) error { return in.s.Pipeline.Render(ctx, target, w) }); err != nil {
		return err
	}
	fmt.Fprintf(in.out, "wrote %s\n", path)
	return nil
}

func (in *Interp) print(ctx context.Context, args []string) error {
	mode, err := layout.ParseMode(args[0])
	if err != nil {
		return &UsageError{Cmd: "print", Usage: "print <double|foldable> [file.pdf]", Err: err}
	}
	path := in.outPath(args, 1, "cards-"+string(mode)+".pdf")
	target := in.s.Store.Selection()
	if err := writeOut(path, func(w io.Writer) error { return in.s.Pipeline.Print(ctx, mode, target, w) }); err != nil {
		return err
	}
	fmt.Fprintf(in.out, "wrote %s\n", path)
	return nil
}

func (in *Interp) batch(ctx context.Context, args []string) error {
	preset := export.PresetName(strings.ToLower(args[0]))
	if preset != export.PresetPrint && preset != export.PresetWeb {
		return &UsageError{Cmd: "batch", Usage: "batch <print|web> [dir]", Err: fmt.Errorf("unknown preset %q", args[0])}
	}
	dir := in.s.Config.Export.OutDir
	if len(args) > 1 {
		dir = args[1]
	}
	files, err := in.s.Pipeline.BatchExport(ctx, export.BatchOptions{
		Preset: preset,
		Target: in.s.Store.Selection(),
		OutDir: dir,
	})
	for _, f := range files {
		fmt.Fprintf(in.out, "wrote %s\n", f)
	}
	return err
}

func (in *Interp) undo(context.Context, []string) error {
	ok, err := in.s.History.Undo()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(in.out, "nothing to undo")
	}
	return nil
}

func (in *Interp) redo(context.Context, []string) error {
	ok, err := in.s.History.Redo()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(in.out, "nothing to redo")
	}
	return nil
}

func (in *Interp) historian() (storage.Historian, error) {
	h, ok := in.s.KV.(storage.Historian)
	if !ok {
		return nil, fmt.Errorf("storage backend keeps no history")
	}
	return h, nil
}

func (in *Interp) snapshots(ctx context.Context, args []string) error {
	limit := 10
	if len(args) == 1 {
		n, err := index("snapshots", "limit", args[0])
		if err != nil {
			return err
		}
		limit = n
	}
	h, err := in.historian()
	if err != nil {
		return err
	}
	snaps, err := h.History(ctx, in.s.Persister.Key(), limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(in.out, "no stored versions")
	}
	for i, sn := range snaps {
		fmt.Fprintf(in.out, "  %d  %s  %d bytes\n", i, sn.TS.Local().Format("2006-01-02 15:04:05"), len(sn.Blob))
	}
	return nil
}

func (in *Interp) revert(ctx context.Context, args []string) error {
	n, err := index("revert", "n", args[0])
	if err != nil {
		return err
	}
	h, err := in.historian()
	if err != nil {
		return err
	}
	snaps, err := h.History(ctx, in.s.Persister.Key(), n+1)
	if err != nil {
		return err
	}
	if err := domain.CheckIndex("version", n, len(snaps)); err != nil {
		return err
	}
	if err := in.s.Store.Deserialize(snaps[n].Blob); err != nil {
		return err
	}
	fmt.Fprintf(in.out, "reverted to version %d (%d groups)\n", n, in.s.Store.Len())
	return nil
}

func (in *Interp) save(ctx context.Context, _ []string) error {
	if err := in.s.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(in.out, "saved")
	return nil
}
