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
	"fmt"

	"github.com/google/btree"
)

// Index is an ordered index of non-overlapping areas, answering which areas
// cover a particular virtual address range.
type Index struct {
	tree *btree.BTreeG[Area]
}

// NewIndex returns an index of the passed areas, which must be valid in the
// sense of [Validate].
func NewIndex(areas []Area) (*Index, error) {
	if err := Validate(areas); err != nil {
		return nil, err
	}
	tree := btree.NewG(8, func(a, b Area) bool { return a.Start < b.Start })
	for _, area := range areas {
		tree.ReplaceOrInsert(area)
	}
	return &Index{tree: tree}, nil
}

// Len returns the number of indexed areas.
func (x *Index) Len() int { return x.tree.Len() }

// Containing returns the area containing addr, if any.
func (x *Index) Containing(addr uint64) (Area, bool) {
	var found Area
	ok := false
	x.tree.DescendLessOrEqual(Area{Start: addr}, func(area Area) bool {
		if addr < area.End {
			found, ok = area, true
		}
		return false
	})
	return found, ok
}

// Split cuts the range [start, end) at the boundaries of the indexed areas
// covering it, calling fn for each resulting piece together with the area
// covering that piece. Split fails when some part of the range is not covered
// by any area, without calling fn for any piece beyond the gap.
func (x *Index) Split(start, end uint64, fn func(area Area, start, end uint64) error) error {
	for start < end {
		area, ok := x.Containing(start)
		if !ok {
			return fmt.Errorf("address %#x not covered by any area", start)
		}
		pieceEnd := min(end, area.End)
		if err := fn(area, start, pieceEnd); err != nil {
			return err
		}
		start = pieceEnd
	}
	return nil
}
