package document

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"spellcards/internal/domain"
)

func seeded(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	s.AddGroup(domain.NewGroup("Wizard", domain.Card{domain.FieldClass: "Wizard"},
		domain.Card{domain.FieldName: "Shield"},
		domain.Card{domain.FieldName: "Fireball"},
		domain.Card{domain.FieldName: "Light"}))
	s.AddGroup(domain.NewGroup("Cleric", nil, domain.Card{domain.FieldName: "Bless"}))
	s.AddGroup(domain.NewGroup("Empty", nil))
	return s
}

func validSelection(s *Store) bool {
	groups := s.Groups()
	return s.Selection().Valid(len(groups), func(g int) int { return groups[g].Len() })
}

func TestEffectiveCardScenario(t *testing.T) {
	s := New()
	g := s.AddGroup(domain.NewGroup("G", domain.Card{domain.FieldColor: "#ff0000"}, domain.Card{domain.FieldName: "Fireball"}))
	got, err := s.EffectiveCard(g, 0)
	if err != nil {
		t.Fatalf("effective card: %v", err)
	}
	want := domain.Card{domain.FieldName: "Fireball", domain.FieldColor: "#ff0000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("effective card (-want +got):\n%s", diff)
	}
	s.SelectCard(g, 0)
	if _, err := s.RemoveCard(g, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !s.Selection().IsNone() {
		t.Fatalf("selection after removing selected card = %v", s.Selection())
	}
	s.SelectCard(g, 0)
	if !s.Selection().IsNone() {
		t.Fatalf("selecting a missing card = %v", s.Selection())
	}
}

func TestRemoveGroupClearsSelectionOnIt(t *testing.T) {
	s := seeded(t)
	s.SelectCard(1, 0)
	if _, err := s.RemoveGroup(1); err != nil {
		t.Fatalf("remove group: %v", err)
	}
	if !s.Selection().IsNone() {
		t.Fatalf("selection = %v, want none", s.Selection())
	}
}

func TestPositionalSelectionKeepsIndex(t *testing.T) {
	s := seeded(t)
	s.SelectGroup(1)
	if _, err := s.RemoveGroup(0); err != nil {
		t.Fatalf("remove group: %v", err)
	}
	if got := s.Selection(); got != domain.GroupSelection(1) {
		t.Fatalf("selection = %v, want group[1]", got)
	}
	g, _ := s.Group(1)
	if g.Name != "Empty" {
		t.Fatalf("selected group is %q", g.Name)
	}
}

func TestFollowSelectionTracksIdentity(t *testing.T) {
	s := seeded(t, FollowSelection(true))
	s.SelectCard(1, 0)
	if _, err := s.RemoveGroup(0); err != nil {
		t.Fatalf("remove group: %v", err)
	}
	if got := s.Selection(); got != domain.CardSelection(0, 0) {
		t.Fatalf("selection = %v, want card[0][0]", got)
	}
	s.AddGroup(domain.NewGroup("Bard", nil))
	if err := s.MoveGroup(0, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := s.Selection(); got != domain.CardSelection(2, 0) {
		t.Fatalf("selection = %v, want card[2][0]", got)
	}
	if _, err := s.RemoveCard(2, 0); err != nil {
		t.Fatalf("remove card: %v", err)
	}
	if !s.Selection().IsNone() {
		t.Fatalf("selection = %v, want none", s.Selection())
	}
}

func TestFollowSelectionAcrossCardMove(t *testing.T) {
	s := seeded(t, FollowSelection(true))
	s.SelectCard(0, 2)
	if err := s.MoveCard(0, 2, 0); err != nil {
		t.Fatalf("move card: %v", err)
	}
	if got := s.Selection(); got != domain.CardSelection(0, 0) {
		t.Fatalf("selection = %v, want card[0][0]", got)
	}
	c := s.SelectedCard()
	if c.Name() != "Light" {
		t.Fatalf("selected card = %q", c.Name())
	}
}

func TestSelectionInvariantUnderRandomOps(t *testing.T) {
	for _, follow := range []bool{false, true} {
		s := seeded(t, FollowSelection(follow))
		var violations int
		unsub := s.Subscribe(func(Change) {
			if !validSelection(s) {
				violations++
			}
		})
		r := rand.New(rand.NewSource(42))
		for i := 0; i < 2000; i++ {
			n := s.Len()
			gi := r.Intn(n + 2)
			ci := r.Intn(5)
			switch r.Intn(7) {
			case 0:
				s.AddGroup(domain.NewGroup("x", nil))
			case 1:
				if n > 1 {
					_, _ = s.RemoveGroup(gi)
				}
			case 2:
				_ = s.MoveGroup(gi, r.Intn(n+1))
			case 3:
				_, _ = s.AddCard(gi, domain.Card{})
			case 4:
				_, _ = s.RemoveCard(gi, ci)
			case 5:
				_ = s.MoveCard(gi, ci, r.Intn(5))
			case 6:
				if r.Intn(2) == 0 {
					s.SelectGroup(gi - 1)
				} else {
					s.SelectCard(gi, ci-1)
				}
			}
			if !validSelection(s) {
				t.Fatalf("follow=%v step %d: invalid selection %v", follow, i, s.Selection())
			}
		}
		unsub()
		if violations != 0 {
			t.Fatalf("follow=%v: observers saw %d invalid selections", follow, violations)
		}
	}
}

func TestIndexErrors(t *testing.T) {
	s := seeded(t)
	checks := map[string]error{
		"remove group": func() error { _, err := s.RemoveGroup(3); return err }(),
		"move group":   s.MoveGroup(0, -1),
		"add card":     func() error { _, err := s.AddCard(9, domain.Card{}); return err }(),
		"remove card":  func() error { _, err := s.RemoveCard(2, 0); return err }(),
		"move card":    s.MoveCard(0, 0, 3),
		"edit card":    s.EditCard(1, 1, domain.FieldName, domain.Str("x")),
		"rename":       s.RenameGroup(-1, "x"),
		"defaults":     s.EditDefaults(5, domain.FieldColor, nil),
		"dup group":    func() error { _, err := s.DuplicateGroup(3); return err }(),
		"dup card":     func() error { _, err := s.DuplicateCard(0, 3); return err }(),
	}
	for name, err := range checks {
		var ie *domain.IndexError
		if !errors.As(err, &ie) {
			t.Fatalf("%s: want *IndexError, got %v", name, err)
		}
	}
}

func TestFailedMutationDoesNotNotify(t *testing.T) {
	s := seeded(t)
	rev := s.Revision()
	called := false
	s.Subscribe(func(Change) { called = true })
	if err := s.MoveCard(0, 0, 7); err == nil {
		t.Fatalf("expected error")
	}
	if called || s.Revision() != rev {
		t.Fatalf("failed mutation was committed")
	}
}

func TestObserversInOrderAndUnsubscribe(t *testing.T) {
	s := New()
	var got []string
	unA := s.Subscribe(func(ch Change) { got = append(got, "a:"+string(ch.Op)) })
	s.Subscribe(func(ch Change) { got = append(got, "b:"+string(ch.Op)) })
	s.AddGroup(domain.NewGroup("g", nil))
	unA()
	s.SelectGroup(0)
	want := []string{"a:add-group", "b:add-group", "b:select"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("notifications (-want +got):\n%s", diff)
	}
}

func TestChangeCarriesRevisionAndSelection(t *testing.T) {
	s := seeded(t)
	var last Change
	s.Subscribe(func(ch Change) { last = ch })
	idx, err := s.DuplicateCard(0, 1)
	if err != nil {
		t.Fatalf("duplicate card: %v", err)
	}
	if last.Op != OpDuplicateCard || last.Revision != s.Revision() || last.Selection != domain.CardSelection(0, idx) {
		t.Fatalf("change = %+v", last)
	}
	c, _ := s.EffectiveCard(0, idx)
	if c.Name() != "Fireball" {
		t.Fatalf("duplicate = %v", c)
	}
}

func TestDuplicateGroupIsDeepAndSelected(t *testing.T) {
	s := seeded(t)
	idx, err := s.DuplicateGroup(0)
	if err != nil {
		t.Fatalf("duplicate group: %v", err)
	}
	if s.Selection() != domain.GroupSelection(idx) {
		t.Fatalf("selection = %v", s.Selection())
	}
	if err := s.EditCard(idx, 0, domain.FieldName, domain.Str("Mage Armor")); err != nil {
		t.Fatalf("edit: %v", err)
	}
	orig, _ := s.EffectiveCard(0, 0)
	if orig.Name() != "Shield" {
		t.Fatalf("duplicate shares cards with original")
	}
}

func TestSelectedCardViews(t *testing.T) {
	s := seeded(t)
	if got := s.SelectedCard(); got.Name() != NoSelectionName || len(got) != 1 {
		t.Fatalf("no selection view = %v", got)
	}
	s.SelectGroup(0)
	want := domain.Card{domain.FieldName: "Wizard", domain.FieldClass: "Wizard"}
	if diff := cmp.Diff(want, s.SelectedCard()); diff != "" {
		t.Fatalf("group view (-want +got):\n%s", diff)
	}
	s.SelectCard(0, 1)
	want = domain.Card{domain.FieldName: "Fireball", domain.FieldClass: "Wizard"}
	if diff := cmp.Diff(want, s.SelectedCard()); diff != "" {
		t.Fatalf("card view (-want +got):\n%s", diff)
	}
}

func TestGroupsReturnsCopies(t *testing.T) {
	s := seeded(t)
	gs := s.Groups()
	gs[0].EditName("changed")
	_ = gs[0].EditCard(0, domain.FieldName, nil)
	g, _ := s.Group(0)
	if g.Name != "Wizard" {
		t.Fatalf("store mutated through Groups copy")
	}
	c, _ := g.Card(0)
	if c.Name() != "Shield" {
		t.Fatalf("store card mutated through Groups copy")
	}
}

func TestConcurrentMutationsAndReads(t *testing.T) {
	s := seeded(t)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = s.AddCard(w%3, domain.Card{domain.FieldName: "c"})
				s.SelectCard(w%3, i)
				_ = s.SelectedCard()
				_, _ = s.Serialize()
			}
		}(w)
	}
	wg.Wait()
	if !validSelection(s) {
		t.Fatalf("invalid selection after concurrent use: %v", s.Selection())
	}
	if s.Revision() != uint64(3+4*200*2) {
		t.Fatalf("revision = %d", s.Revision())
	}
}

func TestAddNilGroupIsRejected(t *testing.T) {
	s := seeded(t)
	rev := s.Revision()
	if got := s.AddGroup(nil); got != -1 {
		t.Fatalf("AddGroup(nil) = %d, want -1", got)
	}
	if s.Len() != 3 || s.Revision() != rev {
		t.Fatalf("nil group committed: len %d rev %d -> %d", s.Len(), rev, s.Revision())
	}
}

func TestPanicInsideMutationReleasesLocks(t *testing.T) {
	s := seeded(t)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("mutation did not panic")
			}
		}()
		_ = s.commit(OpEditCard, func() error { panic("boom") })
	}()

	done := make(chan error, 1)
	go func() {
		_, err := s.Serialize()
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Serialize blocked after a panic inside a mutation")
	}
	// the store still accepts changes
	if g := s.AddGroup(domain.NewGroup("After", nil)); g != 3 {
		t.Fatalf("AddGroup after panic = %d", g)
	}
}
