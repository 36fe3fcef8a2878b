package domain

import (
	"encoding/json"
	"testing"
)

func TestOrdinalSuffix(t *testing.T) {
	cases := map[int]string{1: "st", 2: "nd", 3: "rd", 4: "th", 9: "th", 11: "th", 12: "th", 13: "th", 21: "st", 22: "nd", 101: "st", 111: "th"}
	for n, want := range cases {
		if got := OrdinalSuffix(n); got != want {
			t.Fatalf("OrdinalSuffix(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestBulletLists(t *testing.T) {
	in := "Options:\n* one\n- two\nnot-a-bullet\n*bold*"
	want := "Options:\n• one\n• two\nnot-a-bullet\n*bold*"
	if got := BulletLists(in); got != want {
		t.Fatalf("BulletLists = %q, want %q", got, want)
	}
}

func TestTypeLine(t *testing.T) {
	cases := []struct {
		card Card
		want string
	}{
		{Card{FieldType: "evocation", FieldLevel: "0"}, "evocation cantrip"},
		{Card{FieldType: "evocation", FieldLevel: "3"}, "3rd level evocation"},
		{Card{FieldType: "necromancy", FieldLevel: "1"}, "1st level necromancy"},
		{Card{FieldType: "illusion"}, "illusion"},
	}
	for _, c := range cases {
		if got := TypeLine(c.card); got != c.want {
			t.Fatalf("TypeLine(%v) = %q, want %q", c.card, got, c.want)
		}
	}
}

func TestSplitConcentration(t *testing.T) {
	rest, conc := SplitConcentration("Concentration, up to 1 minute")
	if !conc || rest != "Up to 1 minute" {
		t.Fatalf("got %q, %v", rest, conc)
	}
	rest, conc = SplitConcentration("instantaneous")
	if conc || rest != "instantaneous" {
		t.Fatalf("got %q, %v", rest, conc)
	}
}

func TestLevelGlyph(t *testing.T) {
	if g := LevelGlyph(Card{FieldLevel: "5", FieldType: "abjuration"}); g != "5" {
		t.Fatalf("glyph = %q", g)
	}
	if g := LevelGlyph(Card{FieldType: "abjuration"}); g != "a" {
		t.Fatalf("glyph = %q", g)
	}
	if g := LevelGlyph(Card{}); g != "" {
		t.Fatalf("glyph = %q", g)
	}
}

func TestSelectionJSON(t *testing.T) {
	cases := []struct {
		sel  Selection
		want string
	}{
		{NoSelection(), `{"type":"none"}`},
		{GroupSelection(0), `{"type":"group","group":0}`},
		{CardSelection(1, 0), `{"type":"card","group":1,"card":0}`},
	}
	for _, c := range cases {
		b, err := json.Marshal(c.sel)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(b) != c.want {
			t.Fatalf("json = %s, want %s", b, c.want)
		}
		var back Selection
		if err := json.Unmarshal(b, &back); err != nil || back != c.sel {
			t.Fatalf("round trip = %v, %v", back, err)
		}
	}
	var s Selection
	if err := json.Unmarshal([]byte(`{"type":"card","group":1}`), &s); err != nil || !s.IsNone() {
		t.Fatalf("incomplete card selection decoded as %v", s)
	}
}

func TestSelectionValid(t *testing.T) {
	sizes := []int{2, 0}
	count := func(g int) int { return sizes[g] }
	if !CardSelection(0, 1).Valid(2, count) {
		t.Fatalf("card 0/1 should be valid")
	}
	if CardSelection(1, 0).Valid(2, count) {
		t.Fatalf("card in empty group should be invalid")
	}
	if GroupSelection(2).Valid(2, count) {
		t.Fatalf("group 2 should be invalid")
	}
	if !NoSelection().Valid(0, count) {
		t.Fatalf("none is always valid")
	}
}

func TestSafeFileName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Fire Bolt", "Fire Bolt"},
		{"  Shield/Ward ", "Shield_Ward"},
		{`a:b*c?"d<e>f|g\h`, "a_b_c__d_e_f_g_h"},
		{"tab\there", "tabhere"},
		{"", "fallback"},
		{"..", "fallback"},
		{" . ", "fallback"},
	}
	for _, tc := range cases {
		if got := SafeFileName(tc.in, "fallback"); got != tc.want {
			t.Fatalf("SafeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
