package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"spellcards/internal/config"
	"spellcards/internal/domain"
	"spellcards/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T, backend string) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.Backend = backend
	cfg.Storage.Path = t.TempDir()
	cfg.Export.RasterWidth = 50
	cfg.Export.RasterHeight = 70
	cfg.Export.PrintRasterWidth = 50
	cfg.Export.OutDir = t.TempDir()
	cfg.History.CoalesceMs = 0
	return cfg
}

func open(t *testing.T, cfg config.AppConfig) (*Session, *Interp, *bytes.Buffer) {
	t.Helper()
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	var out bytes.Buffer
	return s, NewInterp(s, &out), &out
}

const spellbook = `
# a small spellbook
add-group Wizard
default 0 color #3366cc
add-card 0 Fire Bolt
set 0 0 level 0
set 0 0 description "Hurl a mote of fire."
add-card 0 Shield
  ; continuation lines extend the previous command
set 0 1 castingTime
  "1 reaction"
`

func TestScriptBuildsWorkspaceAndPersists(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	s, in, _ := open(t, cfg)
	if err := in.RunScript(context.Background(), spellbook); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	want := []domain.Card{
		{domain.FieldName: "Fire Bolt", domain.FieldLevel: "0", domain.FieldDescription: "Hurl a mote of fire.", domain.FieldColor: "#3366cc"},
		{domain.FieldName: "Shield", domain.FieldCastingTime: "1 reaction", domain.FieldColor: "#3366cc"},
	}
	if diff := cmp.Diff(want, s.Store.Groups()[0].Cards()); diff != "" {
		t.Fatalf("cards (-want +got):\n%s", diff)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, _, _ := open(t, cfg)
	if diff := cmp.Diff(want, again.Store.Groups()[0].Cards()); diff != "" {
		t.Fatalf("reloaded cards (-want +got):\n%s", diff)
	}
}

func TestInterpUndoRedo(t *testing.T) {
	s, in, out := open(t, testConfig(t, config.BackendFile))
	ctx := context.Background()
	for _, line := range []string{"add-group Wizard", "add-card 0 Fireball", "set 0 0 name 'Ice Storm'"} {
		if err := in.ExecLine(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	if err := in.ExecLine(ctx, "undo"); err != nil {
		t.Fatal(err)
	}
	if c, _ := s.Store.EffectiveCard(0, 0); c.Name() != "Fireball" {
		t.Fatalf("after undo name = %q", c.Name())
	}
	if err := in.ExecLine(ctx, "redo"); err != nil {
		t.Fatal(err)
	}
	if c, _ := s.Store.EffectiveCard(0, 0); c.Name() != "Ice Storm" {
		t.Fatalf("after redo name = %q", c.Name())
	}
	out.Reset()
	if err := in.ExecLine(ctx, "redo"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "nothing to redo") {
		t.Fatalf("output %q", out.String())
	}
}

func TestInterpErrors(t *testing.T) {
	_, in, _ := open(t, testConfig(t, config.BackendFile))
	ctx := context.Background()

	if err := in.ExecLine(ctx, "frobnicate"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("unknown command err = %v", err)
	}
	var ue *UsageError
	if err := in.ExecLine(ctx, "rm-group"); !errors.As(err, &ue) || ue.Cmd != "rm-group" {
		t.Fatalf("missing argument err = %v", err)
	}
	if err := in.ExecLine(ctx, "rm-group x"); !errors.As(err, &ue) {
		t.Fatalf("non-numeric err = %v", err)
	}
	if err := in.ExecLine(ctx, "rm-group 3"); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("out of range err = %v", err)
	}
	if err := in.ExecLine(ctx, "add-group W"); err != nil {
		t.Fatal(err)
	}
	if err := in.ExecLine(ctx, "default 0 colour red"); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if err := in.ExecLine(ctx, `rename 0 "open`); err == nil {
		t.Fatalf("unterminated quote accepted")
	}
	if err := in.ExecLine(ctx, "print sideways"); !errors.As(err, &ue) {
		t.Fatalf("bad print mode err = %v", err)
	}
}

func TestInterpListShowSearch(t *testing.T) {
	_, in, out := open(t, testConfig(t, config.BackendFile))
	ctx := context.Background()
	if err := in.RunScript(ctx, spellbook); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	for _, line := range []string{"ls", "ls 0", "show 0 0", "search fire"} {
		if err := in.ExecLine(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	got := out.String()
	for _, want := range []string{"[0] Wizard (2 cards)", "[0.1] Shield", "Hurl a mote of fire.", "[0.0] Fire Bolt"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output lacks %q:\n%s", want, got)
		}
	}
}

func TestExportImportRenderPrint(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	_, in, _ := open(t, cfg)
	ctx := context.Background()
	if err := in.RunScript(ctx, spellbook); err != nil {
		t.Fatal(err)
	}
	steps := []string{
		"select 0",
		"export",
		"render",
		"print double",
		"print foldable",
		"batch web",
	}
	for _, line := range steps {
		if err := in.ExecLine(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	for _, name := range []string{"Wizard.group.json", "cards.zip", "cards-double.pdf", "cards-foldable.pdf", filepath.Join("web", "cards.zip")} {
		st, err := os.Stat(filepath.Join(cfg.Export.OutDir, name))
		if err != nil || st.Size() == 0 {
			t.Fatalf("output %s: %v", name, err)
		}
	}

	other, in2, _ := open(t, testConfig(t, config.BackendFile))
	if err := in2.ExecLine(ctx, "import "+filepath.Join(cfg.Export.OutDir, "Wizard.group.json")); err != nil {
		t.Fatalf("import: %v", err)
	}
	if other.Store.Len() != 1 || other.Store.Groups()[0].Len() != 2 {
		t.Fatalf("imported %d groups", other.Store.Len())
	}
	if sel := other.Store.Selection(); sel != domain.GroupSelection(0) {
		t.Fatalf("imported group not selected: %v", sel)
	}
}

func TestSnapshotsAndRevert(t *testing.T) {
	s, in, out := open(t, testConfig(t, config.BackendSQLite))
	ctx := context.Background()
	for _, line := range []string{"add-group A", "add-group B"} {
		if err := in.ExecLine(ctx, line); err != nil {
			t.Fatal(err)
		}
	}
	out.Reset()
	if err := in.ExecLine(ctx, "snapshots"); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if !strings.Contains(out.String(), "  1  ") {
		t.Fatalf("snapshots output %q", out.String())
	}
	if err := in.ExecLine(ctx, "revert 1"); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if s.Store.Len() != 1 || s.Store.Groups()[0].Name != "A" {
		t.Fatalf("after revert %d groups", s.Store.Len())
	}
	if err := in.ExecLine(ctx, "revert 99"); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("revert out of range err = %v", err)
	}
}

func TestRunStopsAtQuit(t *testing.T) {
	s, in, out := open(t, testConfig(t, config.BackendFile))
	input := strings.NewReader("add-group Wizard\nbogus\nquit\nadd-group Never\n")
	if err := in.Run(context.Background(), input, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Store.Len() != 1 {
		t.Fatalf("store has %d groups", s.Store.Len())
	}
	if !strings.Contains(out.String(), "error: unknown command") {
		t.Fatalf("output %q", out.String())
	}
}

func TestCrashTarget(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	s, _, _ := open(t, cfg)
	ct := s.CrashTarget()
	if ct.Dir != cfg.Storage.Path || ct.Store != s.Store || ct.Workspace != "state" || ct.Save == nil {
		t.Fatalf("crash target %+v", ct)
	}
}

func TestExportKeepsStoredVersions(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	cfg.Storage.Snapshots = 5
	s, _, _ := open(t, cfg)
	ctx := context.Background()
	g := s.Store.AddGroup(domain.NewGroup("Wizard", nil))
	for i := 0; i < 8; i++ {
		if _, err := s.Store.AddCard(g, domain.Card{domain.FieldName: fmt.Sprintf("Spell %d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	s.Store.SelectGroup(g)

	distinct := func() int {
		t.Helper()
		snaps, err := s.KV.(storage.Historian).History(ctx, s.Persister.Key(), 100)
		if err != nil {
			t.Fatal(err)
		}
		seen := map[string]bool{}
		for _, sn := range snaps {
			var doc struct {
				Groups json.RawMessage `json:"groups"`
			}
			if err := json.Unmarshal(sn.Blob, &doc); err != nil {
				t.Fatal(err)
			}
			seen[string(doc.Groups)] = true
		}
		return len(seen)
	}
	if n := distinct(); n != 5 {
		t.Fatalf("before export: %d distinct versions, want 5", n)
	}
	caps, err := s.Pipeline.Collect(ctx, domain.NoSelection())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(caps) != 8 {
		t.Fatalf("collected %d cards", len(caps))
	}
	if n := distinct(); n != 5 {
		t.Fatalf("after export: %d distinct versions, want 5", n)
	}
	if sel := s.Store.Selection(); sel != domain.GroupSelection(g) {
		t.Fatalf("selection after export = %v", sel)
	}
}

func TestShellVerbs(t *testing.T) {
	s, in, out := open(t, testConfig(t, config.BackendFile))
	ctx := context.Background()
	if err := in.ExecLine(ctx, "help"); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"add-card <group> [name...]", "print <double|foldable> [file.pdf]", "fields: name,"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("help lacks %q:\n%s", want, out.String())
		}
	}
	// values that look like flags reach the command untouched
	for _, line := range []string{"ADD-GROUP Wizard", "add-card 0 Shield", "set 0 0 description --loud -x", "set 0 0 level -1"} {
		if err := in.ExecLine(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	c, err := s.Store.EffectiveCard(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if c[domain.FieldDescription] != "--loud -x" || c[domain.FieldLevel] != "-1" {
		t.Fatalf("card = %v", c)
	}
	var ue *UsageError
	if err := in.ExecLine(ctx, "mv-card 0 0"); !errors.As(err, &ue) || ue.Cmd != "mv-card" || ue.Usage != "mv-card <group> <from> <to>" {
		t.Fatalf("arity err = %v", err)
	}
	if err := in.ExecLine(ctx, "--help"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("flag as command err = %v", err)
	}
	if err := in.ExecLine(ctx, "exit"); !errors.Is(err, ErrQuit) {
		t.Fatalf("exit err = %v", err)
	}

	// a cancelled context stops the next command
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := in.ExecLine(cctx, "add-group Never"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}
	if err := in.ExecLine(ctx, "add-group Later"); err != nil {
		t.Fatalf("after cancel: %v", err)
	}
	if s.Store.Len() != 2 {
		t.Fatalf("groups = %d", s.Store.Len())
	}
}
