package model

import "sort"

// IDSet is an unordered set of user ids.
type IDSet map[uint]struct{}

func NewIDSet(ids ...uint) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether the set changed.
func (s IDSet) Add(id uint) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether the set changed.
func (s IDSet) Remove(id uint) bool {
	if !s.Has(id) {
		return false
	}
	delete(s, id)
	return true
}

func (s IDSet) Len() int {
	return len(s)
}

// Slice returns the ids in ascending order.
func (s IDSet) Slice() []uint {
	ids := make([]uint, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}
