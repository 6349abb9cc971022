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

import "golang.org/x/sys/unix"

// SyntheticArea returns a placeholder area spanning [start, end).
func SyntheticArea(start, end uint64) Area {
	return Area{
		Start:  start,
		End:    end,
		Prot:   unix.PROT_NONE,
		Flags:  unix.MAP_PRIVATE,
		Kind:   Synthetic,
		Status: StatusRegular | StatusAnonPrivate,
	}
}

// Condense returns the condensed list of the passed areas: anchor areas are
// kept unchanged, while each maximal run of non-anchor areas is collapsed into
// a single synthetic area with the exact bounds of the run. The passed areas
// are validated first; Condense does not modify them.
func Condense(areas []Area) ([]Area, error) {
	if err := Validate(areas); err != nil {
		return nil, err
	}
	// one entry per anchor, plus one per maximal run of non-anchors.
	size := 0
	inRun := false
	for _, area := range areas {
		if area.Kind.Anchor() {
			size++
			inRun = false
			continue
		}
		if !inRun {
			size++
			inRun = true
		}
	}

	condensed := make([]Area, 0, size)
	var begin, end uint64
	open := false
	flush := func() {
		if !open {
			return
		}
		condensed = append(condensed, SyntheticArea(begin, end))
		open = false
	}
	for _, area := range areas {
		if area.Kind.Anchor() {
			flush()
			condensed = append(condensed, area)
			continue
		}
		if !open {
			begin, end = area.Start, area.End
			open = true
			continue
		}
		end = max(end, area.End)
	}
	flush()
	return condensed, nil
}
