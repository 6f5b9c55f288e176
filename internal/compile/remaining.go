package compile

import "slices"

// Remaining is the owned working set of identities not yet placed in a
// group. Next always yields the smallest member.
type Remaining struct {
	order  []int
	cursor int
	in     map[int]struct{}
}

// NewRemaining returns the set {1..maxID}.
func NewRemaining(maxID int) *Remaining {
	ids := make([]int, 0, max(maxID, 0))
	for i := 1; i <= maxID; i++ {
		ids = append(ids, i)
	}
	return RemainingOf(ids...)
}

// RemainingOf returns a set holding the given identities.
func RemainingOf(ids ...int) *Remaining {
	order := slices.Clone(ids)
	slices.Sort(order)
	order = slices.Compact(order)
	in := make(map[int]struct{}, len(order))
	for _, id := range order {
		in[id] = struct{}{}
	}
	return &Remaining{order: order, in: in}
}

// Next returns the smallest identity still in the set.
func (r *Remaining) Next() (int, bool) {
	for r.cursor < len(r.order) {
		id := r.order[r.cursor]
		if _, ok := r.in[id]; ok {
			return id, true
		}
		r.cursor++
	}
	return 0, false
}

// Contains reports whether id is still ungrouped.
func (r *Remaining) Contains(id int) bool {
	_, ok := r.in[id]
	return ok
}

// Known reports whether id belonged to the set when it was created.
func (r *Remaining) Known(id int) bool {
	_, ok := slices.BinarySearch(r.order, id)
	return ok
}

// Remove takes id out of the set and reports whether it was present.
func (r *Remaining) Remove(id int) bool {
	if _, ok := r.in[id]; !ok {
		return false
	}
	delete(r.in, id)
	return true
}

// Len returns the number of ungrouped identities.
func (r *Remaining) Len() int { return len(r.in) }

// IDs returns the ungrouped identities in ascending order.
func (r *Remaining) IDs() []int {
	out := make([]int, 0, len(r.in))
	for _, id := range r.order[r.cursor:] {
		if _, ok := r.in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
