package ballot

import (
	"errors"
	"fmt"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

var (
	ErrCapacityExceeded = errors.New("category selection limit reached")
	ErrUnknownCategory  = errors.New("unknown category")
)

// CapacityError is returned when a category already holds its maximum
// number of nominees. It matches ErrCapacityExceeded.
type CapacityError struct {
	CategoryID    string
	MaxSelections int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("at most %d selections allowed in category %s", e.MaxSelections, e.CategoryID)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// ChangeKind identifies a ballot mutation
type ChangeKind string

const (
	ChangeSelected   ChangeKind = "selected"
	ChangeDeselected ChangeKind = "deselected"
	ChangeReset      ChangeKind = "reset"
)

// Change describes an effective mutation. CategoryID and PersonID are
// empty for resets.
type Change struct {
	Kind       ChangeKind
	CategoryID string
	PersonID   string
}

// selectionSet keeps unique person IDs in insertion order
type selectionSet struct {
	order   []string
	members map[string]struct{}
}

func newSelectionSet() *selectionSet {
	return &selectionSet{members: make(map[string]struct{})}
}

func (s *selectionSet) has(id string) bool {
	_, ok := s.members[id]
	return ok
}

func (s *selectionSet) add(id string) {
	s.members[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *selectionSet) remove(id string) {
	delete(s.members, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *selectionSet) size() int {
	return len(s.order)
}

// State owns one selection set per catalog category.
// It is not safe for concurrent use; callers serialize access.
type State struct {
	catalog   *models.Catalog
	sets      map[string]*selectionSet
	observers []func(Change)
}

// NewState creates a ballot with an empty set for every category
func NewState(catalog *models.Catalog) *State {
	s := &State{catalog: catalog}
	s.sets = s.emptySets()
	return s
}

func (s *State) emptySets() map[string]*selectionSet {
	sets := make(map[string]*selectionSet, len(s.catalog.Categories))
	for _, c := range s.catalog.Categories {
		sets[c.ID] = newSelectionSet()
	}
	return sets
}

// Observe registers fn to run after every effective mutation
func (s *State) Observe(fn func(Change)) {
	s.observers = append(s.observers, fn)
}

func (s *State) notify(c Change) {
	for _, fn := range s.observers {
		fn(c)
	}
}

// Catalog returns the catalog the ballot was built from
func (s *State) Catalog() *models.Catalog {
	return s.catalog
}

// Select adds personID to the category. Selecting someone already picked
// is a no-op.
func (s *State) Select(categoryID, personID string) error {
	cat, ok := s.catalog.Category(categoryID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}

	set := s.sets[categoryID]
	if set.has(personID) {
		return nil
	}
	if set.size() >= cat.MaxSelections {
		return &CapacityError{CategoryID: categoryID, MaxSelections: cat.MaxSelections}
	}

	set.add(personID)
	s.notify(Change{Kind: ChangeSelected, CategoryID: categoryID, PersonID: personID})
	return nil
}

// Deselect removes personID from the category if present
func (s *State) Deselect(categoryID, personID string) {
	set, ok := s.sets[categoryID]
	if !ok || !set.has(personID) {
		return
	}

	set.remove(personID)
	s.notify(Change{Kind: ChangeDeselected, CategoryID: categoryID, PersonID: personID})
}

// Reset replaces every category's set with a new empty one
func (s *State) Reset() {
	s.sets = s.emptySets()
	s.notify(Change{Kind: ChangeReset})
}

// Selections returns a copy of the category's picks in insertion order
func (s *State) Selections(categoryID string) []string {
	set, ok := s.sets[categoryID]
	if !ok {
		return nil
	}
	out := make([]string, len(set.order))
	copy(out, set.order)
	return out
}

// Size returns how many nominees are picked in the category
func (s *State) Size(categoryID string) int {
	if set, ok := s.sets[categoryID]; ok {
		return set.size()
	}
	return 0
}

// CompletedCount returns the number of categories with at least one pick
func (s *State) CompletedCount() int {
	n := 0
	for _, set := range s.sets {
		if set.size() > 0 {
			n++
		}
	}
	return n
}

// TotalCategories returns the number of categories on the ballot
func (s *State) TotalCategories() int {
	return len(s.sets)
}

// IsComplete reports whether every category has at least one pick
func (s *State) IsComplete() bool {
	return s.CompletedCount() == len(s.sets)
}

// Describe returns the per-category picks in catalog order for display
func (s *State) Describe() []models.CategorySelection {
	out := make([]models.CategorySelection, 0, len(s.catalog.Categories))
	for _, c := range s.catalog.Categories {
		ids := s.Selections(c.ID)
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = s.catalog.PersonName(id)
		}
		out = append(out, models.CategorySelection{
			CategoryID:    c.ID,
			Name:          c.Name,
			MaxSelections: c.MaxSelections,
			PersonIDs:     ids,
			PersonNames:   names,
		})
	}
	return out
}
