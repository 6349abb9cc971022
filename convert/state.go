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

package convert

import (
	"errors"
	"fmt"
)

// TaskState is the conversion state of a single task. A task advances through
// its states strictly in order, one state at a time.
type TaskState int

const (
	NotStarted      TaskState = iota
	CtlOpened                 // pagemap and pages images opened
	PagesCommitted            // page contents committed to the pool
	PseudoMmCreated           // pseudo address space created
	MappingBuilt              // areas and page table entries replayed
	ImgWritten                // markers and condensed mapping image written
	Closed                    // task resources released
)

var stateNames = [...]string{
	NotStarted:      "not started",
	CtlOpened:       "ctl opened",
	PagesCommitted:  "pages committed",
	PseudoMmCreated: "pseudo mm created",
	MappingBuilt:    "mapping built",
	ImgWritten:      "image written",
	Closed:          "closed",
}

func (s TaskState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("TaskState(%d)", int(s))
	}
	return stateNames[s]
}

// ErrState signals an invalid task state transition.
var ErrState = errors.New("invalid task state transition")

// advance returns the next state if to directly follows from; otherwise, it
// returns an error.
func advance(from, to TaskState) (TaskState, error) {
	if to != from+1 || to > Closed {
		return from, fmt.Errorf("%w from %q to %q", ErrState, from, to)
	}
	return to, nil
}
