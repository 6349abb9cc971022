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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

type piece struct {
	area       Area
	start, end uint64
}

var _ = Describe("area index", func() {

	var index *Index

	BeforeEach(func() {
		index = Successful(NewIndex([]Area{
			area(0x1000, 0x3000, Normal),
			area(0x3000, 0x4000, Vdso),
			area(0x6000, 0x8000, Normal),
		}))
		Expect(index.Len()).To(Equal(3))
	})

	It("rejects invalid areas", func() {
		Expect(NewIndex([]Area{area(0x2000, 0x1000, Normal)})).Error().To(MatchError(ErrOrder))
	})

	It("finds containing areas", func() {
		for _, addr := range []uint64{0x1000, 0x2fff} {
			a, ok := index.Containing(addr)
			Expect(ok).To(BeTrue())
			Expect(a).To(Equal(area(0x1000, 0x3000, Normal)))
		}
		a, ok := index.Containing(0x3000)
		Expect(ok).To(BeTrue())
		Expect(a.Kind).To(Equal(Vdso))

		_, ok = index.Containing(0x0fff)
		Expect(ok).To(BeFalse())
		_, ok = index.Containing(0x4000)
		Expect(ok).To(BeFalse())
		_, ok = index.Containing(0x8000)
		Expect(ok).To(BeFalse())
	})

	It("splits ranges at area boundaries", func() {
		var pieces []piece
		Expect(index.Split(0x2000, 0x4000, func(a Area, start, end uint64) error {
			pieces = append(pieces, piece{a, start, end})
			return nil
		})).To(Succeed())
		Expect(pieces).To(Equal([]piece{
			{area(0x1000, 0x3000, Normal), 0x2000, 0x3000},
			{area(0x3000, 0x4000, Vdso), 0x3000, 0x4000},
		}))
	})

	It("fails on uncovered ranges", func() {
		var pieces []piece
		Expect(index.Split(0x3000, 0x7000, func(a Area, start, end uint64) error {
			pieces = append(pieces, piece{a, start, end})
			return nil
		})).To(MatchError(ContainSubstring("0x4000 not covered")))
		Expect(pieces).To(HaveLen(1))
	})

})
