package ordering

import (
	"sort"
)

// NextPosition is the position a newly created item takes: len(items)+1.
func NextPosition(items []Item) int {
	return len(items) + 1
}

// Appended is the outcome of [Append].
type Appended struct {
	Created Item
	// Displaced is the pinned item moved from N to N+1 to make room, if any.
	Displaced *Item
}

// Changed returns every item that must be written.
func (a Appended) Changed() []Item {
	out := []Item{a.Created}
	if a.Displaced != nil {
		out = append(out, *a.Displaced)
	}
	return out
}

// Append places item at [NextPosition]. When the collection has a pinned
// item, the new item takes the pinned item's slot and the pinned item moves
// to the new last position.
func Append(items []Item, item Item) Appended {
	item.Position = NextPosition(items)
	item.Pinned = false

	pinned, ok := pinnedItem(items)
	if !ok {
		return Appended{Created: item}
	}

	item.Position, pinned.Position = pinned.Position, item.Position
	return Appended{Created: item, Displaced: &pinned}
}

// Swap is the outcome of [SwapMove].
type Swap struct {
	Source    Item
	Displaced Item
}

// Changed returns the items that must be written; nil for a no-op move.
func (s Swap) Changed() []Item {
	if s.Source.ID == s.Displaced.ID {
		return nil
	}
	return []Item{s.Source, s.Displaced}
}

// SwapMove moves sourceID to target by swapping positions with the item that
// currently holds target. It is a pairwise swap, not a shift.
func SwapMove(items []Item, sourceID string, target int) (Swap, error) {
	if len(items) <= 1 {
		return Swap{}, ErrSingleItemCollection
	}

	source, ok := find(items, sourceID)
	if !ok {
		return Swap{}, ErrItemNotFound
	}

	holder, ok := atPosition(items, target)
	if !ok {
		return Swap{}, ErrTargetPositionNotFound
	}

	if holder.ID == source.ID {
		return Swap{Source: source, Displaced: source}, nil
	}

	if source.Pinned || holder.Pinned {
		return Swap{}, ErrCannotDisplacePinnedStep
	}

	source.Position, holder.Position = holder.Position, source.Position
	return Swap{Source: source, Displaced: holder}, nil
}

// Recompact sorts items by position, most recently updated first on ties,
// keeps a pinned item last, and reassigns positions 1..N.
func Recompact(items []Item) []Item {
	out := append([]Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pinned != b.Pinned {
			return !a.Pinned
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Remove deletes id from the collection and recompacts the rest.
func Remove(items []Item, id string) (Item, []Item, error) {
	removed, ok := find(items, id)
	if !ok {
		return Item{}, nil, ErrItemNotFound
	}

	rest := make([]Item, 0, len(items)-1)
	for _, it := range items {
		if it.ID != id {
			rest = append(rest, it)
		}
	}
	return removed, Recompact(rest), nil
}

// PinResult is the outcome of [Pin].
type PinResult struct {
	Pinned Item
	// Unpinned is the previously pinned item, if any.
	Unpinned *Item
	// Displaced is the item moved out of the last slot when nothing was pinned before.
	Displaced *Item
	noop      bool
}

// Changed returns every item that must be written.
func (p PinResult) Changed() []Item {
	if p.noop {
		return nil
	}
	out := []Item{p.Pinned}
	if p.Unpinned != nil {
		out = append(out, *p.Unpinned)
	}
	if p.Displaced != nil {
		out = append(out, *p.Displaced)
	}
	return out
}

// Pin makes targetID the collection's pinned item at position N. A previously
// pinned item is unpinned and takes the target's old position; otherwise the
// item at N does.
func Pin(items []Item, targetID string) (PinResult, error) {
	if len(items) <= 1 {
		return PinResult{}, ErrNoOtherSteps
	}

	target, ok := find(items, targetID)
	if !ok {
		return PinResult{}, ErrItemNotFound
	}

	if target.Pinned {
		return PinResult{Pinned: target, noop: true}, nil
	}

	if prev, ok := pinnedItem(items); ok {
		target.Position, prev.Position = prev.Position, target.Position
		target.Pinned = true
		prev.Pinned = false
		return PinResult{Pinned: target, Unpinned: &prev}, nil
	}

	last, ok := atPosition(items, len(items))
	if !ok {
		return PinResult{}, ErrNotDense
	}

	target.Pinned = true
	if last.ID == target.ID {
		return PinResult{Pinned: target}, nil
	}

	target.Position, last.Position = last.Position, target.Position
	return PinResult{Pinned: target, Displaced: &last}, nil
}
