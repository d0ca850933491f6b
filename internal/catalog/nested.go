package catalog

import "sort"

// Range is a contiguous run of Sources belonging to one object.
type Range struct {
	Start int
	Count int
}

// Nested is an object table joined with its sources. Sources are stored
// flat; Ranges[i] selects the sources of Objects[i].
type Nested struct {
	Objects []ObjectRow
	Sources []Source
	Ranges  []Range
}

// JoinNested groups sources under the object with the same ObjectID. Every
// object is kept, with an empty range if it has no sources; sources for
// unknown objects are dropped. Source order within an object is preserved.
func JoinNested(objects []ObjectRow, sources []Source) Nested {
	byObject := make(map[int64][]Source, len(objects))
	for _, s := range sources {
		byObject[s.ObjectID] = append(byObject[s.ObjectID], s)
	}

	n := Nested{
		Objects: append([]ObjectRow(nil), objects...),
		Ranges:  make([]Range, len(objects)),
	}
	for i, o := range objects {
		lc := byObject[o.ObjectID]
		n.Ranges[i] = Range{Start: len(n.Sources), Count: len(lc)}
		n.Sources = append(n.Sources, lc...)
	}
	return n
}

// Len is the number of objects.
func (n Nested) Len() int { return len(n.Objects) }

// LC returns the sources of object i as a sub-slice of n.Sources.
func (n Nested) LC(i int) []Source {
	r := n.Ranges[i]
	return n.Sources[r.Start : r.Start+r.Count : r.Start+r.Count]
}

// Filter returns a copy of n keeping only the sources for which keep
// returns true. Objects are never removed.
func (n Nested) Filter(keep func(Source) bool) Nested {
	out := Nested{
		Objects: append([]ObjectRow(nil), n.Objects...),
		Sources: make([]Source, 0, len(n.Sources)),
		Ranges:  make([]Range, len(n.Objects)),
	}
	for i := range n.Objects {
		start := len(out.Sources)
		for _, s := range n.LC(i) {
			if keep(s) {
				out.Sources = append(out.Sources, s)
			}
		}
		out.Ranges[i] = Range{Start: start, Count: len(out.Sources) - start}
	}
	return out
}

// Unflagged drops every source with a quality flag set.
func (n Nested) Unflagged() Nested {
	return n.Filter(func(s Source) bool { return !s.Flagged() })
}

// Object materializes object i with its light curve sorted by epoch. Ties
// keep their stored order.
func (n Nested) Object(i int) Object {
	lc := append([]Source(nil), n.LC(i)...)
	sort.SliceStable(lc, func(a, b int) bool {
		return lc[a].MidpointMjdTai < lc[b].MidpointMjdTai
	})
	return Object{ObjectRow: n.Objects[i], LC: lc}
}
