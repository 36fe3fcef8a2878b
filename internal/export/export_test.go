package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"spellcards/internal/document"
	"spellcards/internal/domain"
	"spellcards/internal/layout"
	"spellcards/internal/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func workspace(t *testing.T) *document.Store {
	t.Helper()
	s := document.New()
	s.AddGroup(domain.NewGroup("Wizard", domain.Card{domain.FieldColor: "#3366cc"},
		domain.Card{domain.FieldName: "Fire Bolt", domain.FieldLevel: "0"},
		domain.Card{domain.FieldName: "Shield/Ward", domain.FieldLevel: "1"},
	))
	s.AddGroup(domain.NewGroup("Cleric", nil, domain.Card{domain.FieldName: "Bless"}))
	return s
}

func newPipeline(t *testing.T, s *document.Store) *Pipeline {
	t.Helper()
	prev := render.NewPreview(s, render.NewCardRenderer(nil, 50, 70))
	t.Cleanup(prev.Close)
	return NewPipeline(s, prev, 5*time.Second)
}

func names(cards []Captured) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Pair.Name
	}
	return out
}

func TestCollectAllRestoresSelection(t *testing.T) {
	s := workspace(t)
	s.SelectGroup(1)
	p := newPipeline(t, s)

	cards, err := p.Collect(context.Background(), domain.NoSelection())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := strings.Join(names(cards), ",")
	if got != "Fire Bolt,Shield/Ward,Bless" {
		t.Fatalf("collected %s", got)
	}
	if cards[2].Group != 1 || cards[2].Card != 0 {
		t.Fatalf("ref of Bless = %+v", cards[2].Ref)
	}
	if sel := s.Selection(); sel != domain.GroupSelection(1) {
		t.Fatalf("selection after collect = %v", sel)
	}
	for _, c := range cards {
		if c.Pair.Front == nil || c.Pair.Back == nil || len(c.Pair.FrontSVG) == 0 {
			t.Fatalf("incomplete pair for %s", c.Pair.Name)
		}
	}
}

func TestCollectTargets(t *testing.T) {
	s := workspace(t)
	p := newPipeline(t, s)
	ctx := context.Background()

	cards, err := p.Collect(ctx, domain.GroupSelection(0))
	if err != nil || len(cards) != 2 {
		t.Fatalf("group target: %d cards, %v", len(cards), err)
	}
	cards, err = p.Collect(ctx, domain.CardSelection(0, 1))
	if err != nil || len(cards) != 1 || cards[0].Pair.Name != "Shield/Ward" {
		t.Fatalf("card target: %v, %v", names(cards), err)
	}
	if _, err := p.Collect(ctx, domain.CardSelection(3, 0)); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("bad card target err = %v", err)
	}
	if _, err := p.Collect(ctx, domain.GroupSelection(-1)); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("bad group target err = %v", err)
	}
	if sel := s.Selection(); !sel.IsNone() {
		t.Fatalf("selection after collect = %v", sel)
	}
}

func TestCollectEmptyAndCancelled(t *testing.T) {
	s := document.New()
	p := newPipeline(t, s)
	if _, err := p.Collect(context.Background(), domain.NoSelection()); !errors.Is(err, ErrEmptyTarget) {
		t.Fatalf("empty err = %v", err)
	}

	s2 := workspace(t)
	p2 := newPipeline(t, s2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p2.Collect(ctx, domain.NoSelection()); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}
}

type stuckRenderer struct{ gate chan struct{} }

func (r stuckRenderer) Render(c domain.Card) (render.Pair, error) {
	<-r.gate
	return render.Pair{Name: "stale"}, nil
}

func TestCollectTimeoutFallback(t *testing.T) {
	s := workspace(t)
	gate := make(chan struct{})
	prev := render.NewPreview(s, stuckRenderer{gate: gate})
	defer prev.Close()
	defer close(gate)

	p := NewPipeline(s, prev, 20*time.Millisecond)
	if _, err := p.Collect(context.Background(), domain.CardSelection(0, 0)); !errors.Is(err, render.ErrRenderNotReady) {
		t.Fatalf("without fallback err = %v", err)
	}

	p.Fallback = render.NewCardRenderer(nil, 50, 70)
	cards, err := p.Collect(context.Background(), domain.GroupSelection(0))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := strings.Join(names(cards), ","); got != "Fire Bolt,Shield/Ward" {
		t.Fatalf("fallback collected %s", got)
	}
}

func TestRenderBundle(t *testing.T) {
	s := workspace(t)
	p := newPipeline(t, s)
	var buf bytes.Buffer
	if err := p.Render(context.Background(), domain.NoSelection(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	have := map[string]int64{}
	for _, f := range zr.File {
		have[f.Name] = int64(f.UncompressedSize64)
	}
	if len(have) != 18 {
		t.Fatalf("bundle has %d entries", len(have))
	}
	for _, dir := range []string{"001-Fire Bolt/", "002-Shield_Ward/", "003-Bless/"} {
		for _, n := range []string{FrontSVG, BackSVG, FrontPNG, BackPNG, RowPNG, ColPNG} {
			if size, ok := have[dir+n]; !ok || size == 0 {
				t.Fatalf("missing or empty %s%s", dir, n)
			}
		}
	}
}

func TestFolderName(t *testing.T) {
	cases := map[string]string{
		"Fire Bolt": "001-Fire Bolt/",
		"a/b":       "001-a_b/",
		"  ":        "001-Unnamed/",
		"..":        "001-Unnamed/",
	}
	for in, want := range cases {
		if got := FolderName(0, in); got != want {
			t.Fatalf("FolderName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := FolderName(41, "x"); got != "042-x/" {
		t.Fatalf("FolderName(41) = %q", got)
	}
}

func pageCount(pdf []byte) int {
	return bytes.Count(pdf, []byte("<</Type /Page\n"))
}

func fakeCards(t *testing.T, n int) []Captured {
	t.Helper()
	r := render.NewCardRenderer(nil, 50, 70)
	out := make([]Captured, n)
	for i := range out {
		pair, err := r.Render(domain.Card{domain.FieldName: "Card"})
		if err != nil {
			t.Fatal(err)
		}
		out[i] = Captured{Ref: Ref{Card: i}, Pair: pair}
	}
	return out
}

func TestWritePDFPages(t *testing.T) {
	cases := []struct {
		mode  string
		cards int
		pages int
	}{
		{"double", 1, 2},
		{"double", 9, 2},
		{"double", 10, 4},
		{"foldable", 3, 1},
		{"foldable", 4, 2},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		mode := layout.Mode(tc.mode)
		if err := WritePDF(mode, fakeCards(t, tc.cards), &buf, PDFOptions{Guides: true}); err != nil {
			t.Fatalf("%s/%d: %v", tc.mode, tc.cards, err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
			t.Fatalf("%s/%d: not a pdf", tc.mode, tc.cards)
		}
		if got := pageCount(buf.Bytes()); got != tc.pages {
			t.Fatalf("%s/%d: %d pages, want %d", tc.mode, tc.cards, got, tc.pages)
		}
	}
	if err := WritePDF("double", nil, &bytes.Buffer{}, PDFOptions{}); !errors.Is(err, ErrEmptyTarget) {
		t.Fatalf("empty err = %v", err)
	}
}

func TestPrintFromPipeline(t *testing.T) {
	s := workspace(t)
	p := newPipeline(t, s)
	var dbl, fold bytes.Buffer
	if err := p.PrintDoubleSided(context.Background(), domain.NoSelection(), &dbl); err != nil {
		t.Fatalf("PrintDoubleSided: %v", err)
	}
	if err := p.PrintFoldable(context.Background(), domain.NoSelection(), &fold); err != nil {
		t.Fatalf("PrintFoldable: %v", err)
	}
	if pageCount(dbl.Bytes()) != 2 || pageCount(fold.Bytes()) != 1 {
		t.Fatalf("pages double=%d foldable=%d", pageCount(dbl.Bytes()), pageCount(fold.Bytes()))
	}
}

func TestBatchExportPresets(t *testing.T) {
	s := workspace(t)
	p := newPipeline(t, s)
	root := t.TempDir()

	files, err := p.BatchExport(context.Background(), BatchOptions{Preset: PresetPrint, OutDir: root})
	if err != nil {
		t.Fatalf("print preset: %v", err)
	}
	want := []string{
		filepath.Join(root, "print", "cards-double.pdf"),
		filepath.Join(root, "print", "cards-foldable.pdf"),
	}
	files2, err := p.BatchExport(context.Background(), BatchOptions{Preset: PresetWeb, OutDir: root})
	if err != nil {
		t.Fatalf("web preset: %v", err)
	}
	want = append(want, filepath.Join(root, "web", "cards.zip"))
	files = append(files, files2...)
	if strings.Join(files, "|") != strings.Join(want, "|") {
		t.Fatalf("written %v", files)
	}
	for _, f := range want {
		st, err := os.Stat(f)
		if err != nil || st.Size() == 0 {
			t.Fatalf("output %s: %v", f, err)
		}
	}

	if _, err := p.BatchExport(context.Background(), BatchOptions{Formats: []string{"cbz"}, OutDir: root}); err == nil {
		t.Fatalf("unknown format accepted")
	}
}
