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

import "fmt"

// Error describes a failed task conversion with enough context to diagnose it
// offline.
type Error struct {
	PID     int       // PID of the task being converted
	ImageID uint32    // id of the task's pages image; zero if not yet known
	Backend string    // kind of memory pool backend
	State   TaskState // last state reached by the task
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("converting task %d (pages image %d, %s pool, %s): %s",
		e.PID, e.ImageID, e.Backend, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
