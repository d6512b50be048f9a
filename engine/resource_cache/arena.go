package resource_cache

import (
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
)

// A packed handle holds the slot index plus one in the low 32 bits and the slot generation in the
// high 32 bits, so the zero value never resolves.
func packHandle(index, gen uint32) uint64 {
	return uint64(gen)<<32 | uint64(index+1)
}

func unpackHandle(h uint64) (index, gen uint32, ok bool) {
	lo := uint32(h)
	if lo == 0 {
		return 0, 0, false
	}
	return lo - 1, uint32(h >> 32), true
}

type slot[T any] struct {
	value    *T
	id       asset.ID
	gen      uint32
	lastUsed uint64
	pinned   bool
}

func (s *slot[T]) used() (uint64, bool) { return s.lastUsed, s.pinned }

// arena stores cache entries in generation-checked slots. Removing an entry bumps its slot's
// generation so every handle issued for it stops resolving.
type arena[T any] struct {
	slots []slot[T]
	free  []uint32
	byID  map[asset.ID]uint32
}

func newArena[T any]() arena[T] {
	return arena[T]{byID: make(map[asset.ID]uint32)}
}

func (a *arena[T]) insert(id asset.ID, v *T, frame uint64, pinned bool) uint64 {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[index]
	s.value, s.id, s.lastUsed, s.pinned = v, id, frame, pinned
	if !pinned {
		a.byID[id] = index
	}
	return packHandle(index, s.gen)
}

func (a *arena[T]) get(h uint64) (*T, bool) {
	index, gen, ok := unpackHandle(h)
	if !ok || int(index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[index]
	if s.gen != gen || s.value == nil {
		return nil, false
	}
	return s.value, true
}

// lookup returns the live handle for id and marks it used in frame.
func (a *arena[T]) lookup(id asset.ID, frame uint64) (uint64, bool) {
	index, ok := a.byID[id]
	if !ok {
		return 0, false
	}
	s := &a.slots[index]
	s.lastUsed = frame
	return packHandle(index, s.gen), true
}

func (a *arena[T]) touch(h uint64, frame uint64) {
	if index, gen, ok := unpackHandle(h); ok && int(index) < len(a.slots) && a.slots[index].gen == gen {
		a.slots[index].lastUsed = frame
	}
}

// remove empties the slot behind h and returns its value.
func (a *arena[T]) remove(h uint64) (*T, bool) {
	index, gen, ok := unpackHandle(h)
	if !ok || int(index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[index]
	if s.gen != gen || s.value == nil {
		return nil, false
	}
	v := s.value
	if cur, ok := a.byID[s.id]; ok && cur == index {
		delete(a.byID, s.id)
	}
	s.value, s.id, s.pinned = nil, "", false
	s.gen++
	a.free = append(a.free, index)
	return v, true
}

// each calls fn with the handle and slot of every live entry.
func (a *arena[T]) each(fn func(h uint64, s *slot[T])) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.value != nil {
			fn(packHandle(uint32(i), s.gen), s)
		}
	}
}

func (a *arena[T]) count() int {
	n := 0
	for i := range a.slots {
		if a.slots[i].value != nil {
			n++
		}
	}
	return n
}
