package ordering

import (
	"fmt"
	"sort"
	"time"
)

// Item is one positioned child of a parent collection.
type Item struct {
	ID        string
	Position  int
	Pinned    bool
	UpdatedAt time.Time
}

// Step is a board column. A pinned step is the board's finish step.
type Step struct {
	Item
	BoardID string
	Name    string
}

// Finish reports whether the step is the board's finish step.
func (s Step) Finish() bool {
	return s.Pinned
}

// StepItems projects steps to their ordering items.
func StepItems(steps []Step) []Item {
	out := make([]Item, len(steps))
	for i := range steps {
		out[i] = steps[i].Item
	}
	return out
}

// ApplySteps returns a copy of steps with the given item changes applied by ID.
func ApplySteps(steps []Step, changes []Item) []Step {
	byID := indexByID(changes)
	out := make([]Step, len(steps))
	for i, s := range steps {
		if c, ok := byID[s.ID]; ok {
			s.Item = c
		}
		out[i] = s
	}
	return out
}

// Apply returns a copy of items with changes replacing items of the same ID.
func Apply(items []Item, changes []Item) []Item {
	byID := indexByID(changes)
	out := make([]Item, len(items))
	for i, it := range items {
		if c, ok := byID[it.ID]; ok {
			it = c
		}
		out[i] = it
	}
	return out
}

// Changed returns the items of after whose position or pin state differs
// from the item with the same ID in before. Items absent from before are
// reported as changed.
func Changed(before, after []Item) []Item {
	prev := indexByID(before)
	var out []Item
	for _, it := range after {
		old, ok := prev[it.ID]
		if !ok || old.Position != it.Position || old.Pinned != it.Pinned {
			out = append(out, it)
		}
	}
	return out
}

// Stamp sets UpdatedAt on every item.
func Stamp(items []Item, now time.Time) []Item {
	for i := range items {
		items[i].UpdatedAt = now
	}
	return items
}

// Sorted returns a copy of items ordered by position.
func Sorted(items []Item) []Item {
	out := append([]Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// CheckDense verifies that positions are exactly 1..N, that at most one item
// is pinned, and that a pinned item holds position N.
func CheckDense(items []Item) error {
	n := len(items)
	seen := make([]bool, n+1)
	pinned := 0
	for _, it := range items {
		if it.Position < 1 || it.Position > n {
			return fmt.Errorf("%w: item %s at position %d outside 1..%d", ErrNotDense, it.ID, it.Position, n)
		}
		if seen[it.Position] {
			return fmt.Errorf("%w: duplicate position %d", ErrNotDense, it.Position)
		}
		seen[it.Position] = true
		if it.Pinned {
			pinned++
			if it.Position != n {
				return fmt.Errorf("%w: pinned item %s at position %d, want %d", ErrNotDense, it.ID, it.Position, n)
			}
		}
	}
	if pinned > 1 {
		return fmt.Errorf("%w: %d pinned items", ErrNotDense, pinned)
	}
	return nil
}

func indexByID(items []Item) map[string]Item {
	out := make(map[string]Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out
}

func find(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func atPosition(items []Item, position int) (Item, bool) {
	for _, it := range items {
		if it.Position == position {
			return it, true
		}
	}
	return Item{}, false
}

func pinnedItem(items []Item) (Item, bool) {
	for _, it := range items {
		if it.Pinned {
			return it, true
		}
	}
	return Item{}, false
}
