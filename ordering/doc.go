// Package ordering keeps positioned collections (board steps, board and
// project roles) dense: across the children of one parent, positions are
// always exactly 1..N with no gaps or duplicates.
//
// All functions are pure. They take a snapshot of a parent's items and return
// the items whose position or pin state changed; the caller must persist
// every changed item in a single atomic write.
//
// A collection may carry one pinned item (the board's finish step). The
// pinned item always holds position N and only changes hands through [Pin].
package ordering
