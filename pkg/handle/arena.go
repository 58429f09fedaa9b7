// Package handle implements a generational arena: a slice of slots addressed
// by (index, generation) pairs. Freed slots are reused, but every removal
// bumps the slot's generation so handles captured before the removal are
// detected as stale instead of aliasing the new occupant.
package handle

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrOutOfRange is returned for handles whose index was never allocated.
	ErrOutOfRange = errors.New("handle: index out of range")
	// ErrStale is returned when the slot's generation no longer matches.
	ErrStale = errors.New("handle: stale generation")
	// ErrEmpty is returned when the addressed slot holds no value.
	ErrEmpty = errors.New("handle: empty slot")
)

// Handle addresses one slot of an Arena. The zero Handle is never issued.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.Generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena stores values of type T behind generational handles. The zero value
// is ready to use. Arena is not safe for concurrent mutation.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle, reusing a freed slot when possible.
func (a *Arena[T]) Insert(v T) Handle {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.occupied = true
		a.count++
		return Handle{Index: idx, Generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: v, generation: 1, occupied: true})
	a.count++
	return Handle{Index: uint32(len(a.slots) - 1), Generation: 1}
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], error) {
	if int(h.Index) >= len(a.slots) {
		return nil, ErrOutOfRange
	}
	s := &a.slots[h.Index]
	if s.generation != h.Generation {
		return nil, ErrStale
	}
	if !s.occupied {
		return nil, ErrEmpty
	}
	return s, nil
}

// Get returns the value stored under h.
func (a *Arena[T]) Get(h Handle) (T, error) {
	s, err := a.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Ptr returns a pointer to the value stored under h. The pointer is valid
// until the next Insert.
func (a *Arena[T]) Ptr(h Handle) (*T, error) {
	s, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	return &s.value, nil
}

// Set replaces the value stored under h.
func (a *Arena[T]) Set(h Handle, v T) error {
	s, err := a.lookup(h)
	if err != nil {
		return err
	}
	s.value = v
	return nil
}

// Contains reports whether h addresses a live value.
func (a *Arena[T]) Contains(h Handle) bool {
	_, err := a.lookup(h)
	return err == nil
}

// Remove frees the slot behind h and bumps its generation.
func (a *Arena[T]) Remove(h Handle) error {
	s, err := a.lookup(h)
	if err != nil {
		return err
	}
	var zero T
	s.value = zero
	s.occupied = false
	s.generation++
	// A slot whose generation wrapped around is retired rather than reused.
	if s.generation != 0 {
		a.free = append(a.free, h.Index)
	}
	a.count--
	return nil
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	return a.count
}

// All iterates live values in slot order.
func (a *Arena[T]) All() iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		for i := range a.slots {
			s := &a.slots[i]
			if !s.occupied {
				continue
			}
			if !yield(Handle{Index: uint32(i), Generation: s.generation}, s.value) {
				return
			}
		}
	}
}

// Handles returns the handles of all live values in slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.count)
	for h := range a.All() {
		out = append(out, h)
	}
	return out
}

// Clone returns a copy of the arena with identical handles. cloneValue, if
// non-nil, deep-copies each stored value.
func (a *Arena[T]) Clone(cloneValue func(T) T) *Arena[T] {
	c := &Arena[T]{
		slots: make([]slot[T], len(a.slots)),
		free:  append([]uint32(nil), a.free...),
		count: a.count,
	}
	copy(c.slots, a.slots)
	if cloneValue != nil {
		for i := range c.slots {
			if c.slots[i].occupied {
				c.slots[i].value = cloneValue(c.slots[i].value)
			}
		}
	}
	return c
}
