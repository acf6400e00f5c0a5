package ordering

import "errors"

var (
	// ErrItemNotFound is returned when the referenced item is not part of the collection.
	ErrItemNotFound = errors.New("item not found in collection")
	// ErrTargetPositionNotFound is returned when no item currently holds the target position.
	ErrTargetPositionNotFound = errors.New("target position not found")
	// ErrSingleItemCollection is returned when a move is requested on a one-item collection.
	ErrSingleItemCollection = errors.New("collection has a single item")
	// ErrNoOtherSteps is returned when pinning in a collection with fewer than two items.
	ErrNoOtherSteps = errors.New("no other steps to finish into")
	// ErrCannotDisplacePinnedStep is returned when a move would take the pinned item out of the last slot.
	ErrCannotDisplacePinnedStep = errors.New("cannot displace pinned step")
	// ErrNotDense is returned when positions are not exactly 1..N or the pin invariant is broken.
	ErrNotDense = errors.New("positions are not dense")
	// ErrConcurrentModification is returned by stores when the collection changed after the snapshot was read.
	ErrConcurrentModification = errors.New("collection modified concurrently")
)
