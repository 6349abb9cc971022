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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("task states", func() {

	It("names states", func() {
		Expect(NotStarted.String()).To(Equal("not started"))
		Expect(ImgWritten.String()).To(Equal("image written"))
		Expect(TaskState(42).String()).To(Equal("TaskState(42)"))
	})

	It("advances one state at a time", func() {
		tc := &taskContext{id: -1}
		for state := CtlOpened; state <= Closed; state++ {
			Expect(tc.advance(state)).To(Succeed())
			Expect(tc.state).To(Equal(state))
		}
		Expect(tc.advance(Closed + 1)).To(MatchError(ErrState))
	})

	It("rejects skipping and going back", func() {
		tc := &taskContext{id: -1}
		Expect(tc.advance(PagesCommitted)).To(MatchError(ErrState))
		Expect(tc.state).To(Equal(NotStarted))
		Expect(tc.advance(CtlOpened)).To(Succeed())
		Expect(tc.advance(NotStarted)).To(MatchError(
			`invalid task state transition from "ctl opened" to "not started"`))
		Expect(tc.advance(CtlOpened)).To(MatchError(ErrState))
	})

})
