package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func names(g *Group) []string {
	var out []string
	for _, c := range g.RawCards() {
		out = append(out, c.Name())
	}
	return out
}

func newABCD() *Group {
	return NewGroup("g", nil,
		Card{FieldName: "A"}, Card{FieldName: "B"}, Card{FieldName: "C"}, Card{FieldName: "D"})
}

func TestAddCardNamesUnnamed(t *testing.T) {
	g := NewGroup("g", nil)
	i := g.AddCard(Card{FieldLevel: "1"})
	if i != 0 {
		t.Fatalf("index = %d", i)
	}
	c, _ := g.Card(0)
	if c.Name() != UnnamedCard {
		t.Fatalf("name = %q, want %q", c.Name(), UnnamedCard)
	}
}

func TestAddCardCopies(t *testing.T) {
	g := NewGroup("g", nil)
	src := Card{FieldName: "X"}
	g.AddCard(src)
	src[FieldName] = "Y"
	c, _ := g.Card(0)
	if c.Name() != "X" {
		t.Fatalf("group shares caller map")
	}
}

func TestMoveCardIsSplice(t *testing.T) {
	g := newABCD()
	if err := g.MoveCard(0, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	if diff := cmp.Diff([]string{"B", "C", "A", "D"}, names(g)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if err := g.MoveCard(3, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if diff := cmp.Diff([]string{"D", "B", "C", "A"}, names(g)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestMoveCardSameIndexIsNoop(t *testing.T) {
	g := newABCD()
	for i := 0; i < 4; i++ {
		if err := g.MoveCard(i, i); err != nil {
			t.Fatalf("move(%d,%d): %v", i, i, err)
		}
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, names(g)); diff != "" {
		t.Fatalf("order changed (-want +got):\n%s", diff)
	}
}

func TestMoveCardOutOfRange(t *testing.T) {
	g := newABCD()
	err := g.MoveCard(0, 4)
	var ie *IndexError
	if !errors.As(err, &ie) || ie.Index != 4 || ie.Len != 4 {
		t.Fatalf("want IndexError, got %v", err)
	}
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("IndexError does not unwrap to sentinel")
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, names(g)); diff != "" {
		t.Fatalf("failed move mutated group:\n%s", diff)
	}
}

func TestRemoveCard(t *testing.T) {
	g := newABCD()
	c, err := g.RemoveCard(1)
	if err != nil || c.Name() != "B" {
		t.Fatalf("remove = %v, %v", c, err)
	}
	if _, err := g.RemoveCard(3); err == nil {
		t.Fatalf("expected out of range")
	}
	if g.Len() != 3 {
		t.Fatalf("len = %d", g.Len())
	}
}

func TestEditClearRevealsDefault(t *testing.T) {
	g := NewGroup("g", Card{FieldColor: "#ff0000"}, Card{FieldName: "A", FieldColor: "#00ff00"})
	eff, _ := g.EffectiveCard(0)
	if eff[FieldColor] != "#00ff00" {
		t.Fatalf("effective color = %q", eff[FieldColor])
	}
	if err := g.EditCard(0, FieldColor, nil); err != nil {
		t.Fatalf("edit: %v", err)
	}
	raw, _ := g.Card(0)
	if _, ok := raw[FieldColor]; ok {
		t.Fatalf("cleared field still present: %v", raw)
	}
	eff, _ = g.EffectiveCard(0)
	if eff[FieldColor] != "#ff0000" {
		t.Fatalf("default not applied: %q", eff[FieldColor])
	}
}

func TestEditDefaults(t *testing.T) {
	g := NewGroup("g", nil, Card{FieldName: "A"})
	g.EditDefaults(FieldType, Str("abjuration"))
	if g.Cards()[0][FieldType] != "abjuration" {
		t.Fatalf("default not merged")
	}
	g.EditDefaults(FieldType, nil)
	if _, ok := g.Defaults[FieldType]; ok {
		t.Fatalf("default not deleted")
	}
}

func TestGroupJSONShape(t *testing.T) {
	g := NewGroup("Wizard", Card{FieldClass: "Wizard"}, Card{FieldName: "Shield"})
	b, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":"Wizard","defaults":{"class":"Wizard"},"cards":[{"name":"Shield"}]}`
	if string(b) != want {
		t.Fatalf("json = %s\nwant %s", b, want)
	}
	var back Group
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(g.RawCards(), back.RawCards()); diff != "" || back.Name != "Wizard" {
		t.Fatalf("round trip mismatch: %s", diff)
	}
}

func TestEmptyGroupMarshalsEmptyCards(t *testing.T) {
	b, _ := json.Marshal(&Group{Name: ""})
	if string(b) != `{"name":"","defaults":{},"cards":[]}` {
		t.Fatalf("json = %s", b)
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := newABCD()
	c := g.Clone()
	_ = c.EditCard(0, FieldName, Str("Z"))
	c.EditDefaults(FieldColor, Str("#000000"))
	if names(g)[0] != "A" || len(g.Defaults) != 0 {
		t.Fatalf("clone shares state with original")
	}
}
