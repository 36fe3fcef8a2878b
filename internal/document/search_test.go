package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"spellcards/internal/domain"
)

func TestSearchGroupsAndEffectiveNames(t *testing.T) {
	s := seeded(t)
	g := s.AddGroup(domain.NewGroup("Fire spells", domain.Card{domain.FieldName: "Fire Bolt"}))
	if _, err := s.AddCard(g, domain.Card{domain.FieldLevel: "0"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = s.EditCard(g, 0, domain.FieldName, nil)

	got := s.Search("FIRE")
	want := []Match{
		{Group: 0, Card: 1, Name: "Fireball"},
		{Group: 3, Card: -1, Name: "Fire spells"},
		{Group: 3, Card: 0, Name: "Fire Bolt"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("search (-want +got):\n%s", diff)
	}
	if s.Search("  ") != nil {
		t.Fatalf("blank query should match nothing")
	}
}
