// Copyright 2025 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vma

import (
	"errors"
	"fmt"
)

// Kind of a virtual memory area.
type Kind int

const (
	Normal Kind = iota
	Vdso
	Vvar
	Synthetic
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Vdso:
		return "vdso"
	case Vvar:
		return "vvar"
	case Synthetic:
		return "synthetic"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Anchor returns true for the kinds of areas that cannot be represented inside
// a pseudo address space.
func (k Kind) Anchor() bool {
	return k == Vdso || k == Vvar
}

// Status bits of a checkpointed area, as recorded by CRIU.
const (
	StatusRegular     = 1 << 0
	StatusStack       = 1 << 1
	StatusVsyscall    = 1 << 2
	StatusVdso        = 1 << 3
	StatusHeap        = 1 << 5
	StatusFilePrivate = 1 << 6
	StatusFileShared  = 1 << 7
	StatusAnonShared  = 1 << 8
	StatusAnonPrivate = 1 << 9
	StatusSysVIPC     = 1 << 10
	StatusSocket      = 1 << 11
	StatusVvar        = 1 << 12
	StatusAIORing     = 1 << 13
	StatusMemfd       = 1 << 14
)

// KindOf returns the kind of area for the passed CRIU status bits.
func KindOf(status uint32) Kind {
	switch {
	case status&StatusVdso != 0:
		return Vdso
	case status&StatusVvar != 0:
		return Vvar
	}
	return Normal
}

// Area is a virtual memory area [Start, End) of a task.
type Area struct {
	Start  uint64
	End    uint64
	Prot   uint32
	Flags  uint32
	Pgoff  uint64
	Kind   Kind
	Status uint32 // CRIU VMA status bits
	Shmid  uint64 // file id for file-backed areas
}

// Len returns the length of the area in bytes.
func (a Area) Len() uint64 { return a.End - a.Start }

// FileBacked returns true if the area maps a file.
func (a Area) FileBacked() bool {
	return a.Status&(StatusFilePrivate|StatusFileShared|StatusMemfd) != 0
}

func (a Area) String() string {
	return fmt.Sprintf("%s[%#x-%#x)", a.Kind, a.Start, a.End)
}

// ErrOrder signals a list of areas that is not strictly ordered, or where areas
// overlap or are empty.
var ErrOrder = errors.New("invalid area order")

// OrderError details an ordering invariant violation at a particular index
// into a list of areas.
type OrderError struct {
	Index int
	Area  Area
	Prev  *Area // nil when Area itself is empty or inverted
}

func (e *OrderError) Error() string {
	if e.Prev == nil {
		return fmt.Sprintf("%s: empty or inverted area %s at index %d",
			ErrOrder.Error(), e.Area, e.Index)
	}
	return fmt.Sprintf("%s: area %s at index %d starts before end of preceding area %s",
		ErrOrder.Error(), e.Area, e.Index, *e.Prev)
}

func (e *OrderError) Unwrap() error { return ErrOrder }

// Validate checks that every area is non-empty and that the areas are sorted
// in strictly increasing order without overlapping each other. Validate
// returns an [*OrderError] for the first violation found.
func Validate(areas []Area) error {
	for idx, area := range areas {
		if area.Start >= area.End {
			return &OrderError{Index: idx, Area: area}
		}
		if idx == 0 {
			continue
		}
		if prev := areas[idx-1]; area.Start < prev.End {
			return &OrderError{Index: idx, Area: area, Prev: &prev}
		}
	}
	return nil
}
