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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func area(start, end uint64, kind Kind) Area {
	return Area{Start: start, End: end, Kind: kind}
}

var _ = Describe("areas", func() {

	It("names kinds", func() {
		Expect(Normal.String()).To(Equal("normal"))
		Expect(Vdso.String()).To(Equal("vdso"))
		Expect(Vvar.String()).To(Equal("vvar"))
		Expect(Synthetic.String()).To(Equal("synthetic"))
		Expect(Kind(42).String()).To(Equal("Kind(42)"))
	})

	It("knows its anchors", func() {
		Expect(Vdso.Anchor()).To(BeTrue())
		Expect(Vvar.Anchor()).To(BeTrue())
		Expect(Normal.Anchor()).To(BeFalse())
		Expect(Synthetic.Anchor()).To(BeFalse())
	})

	DescribeTable("deriving kinds from status bits",
		func(status uint32, kind Kind) {
			Expect(KindOf(status)).To(Equal(kind))
		},
		Entry("vdso", uint32(StatusRegular|StatusVdso), Vdso),
		Entry("vvar", uint32(StatusRegular|StatusVvar), Vvar),
		Entry("heap", uint32(StatusRegular|StatusHeap|StatusAnonPrivate), Normal),
		Entry("file", uint32(StatusRegular|StatusFilePrivate), Normal),
	)

	It("detects file-backed areas", func() {
		Expect(Area{Status: StatusRegular | StatusFileShared}.FileBacked()).To(BeTrue())
		Expect(Area{Status: StatusRegular | StatusMemfd}.FileBacked()).To(BeTrue())
		Expect(Area{Status: StatusRegular | StatusAnonPrivate}.FileBacked()).To(BeFalse())
	})

	It("accepts sorted, non-overlapping areas", func() {
		Expect(Validate(nil)).To(Succeed())
		Expect(Validate([]Area{
			area(0x1000, 0x2000, Normal),
			area(0x2000, 0x3000, Vdso),
			area(0x8000, 0x9000, Normal),
		})).To(Succeed())
	})

	DescribeTable("rejecting invalid areas",
		func(areas []Area, index int, hasPrev bool) {
			err := Validate(areas)
			Expect(err).To(MatchError(ErrOrder))
			var oerr *OrderError
			Expect(errors.As(err, &oerr)).To(BeTrue())
			Expect(oerr.Index).To(Equal(index))
			Expect(oerr.Area).To(Equal(areas[index]))
			if hasPrev {
				Expect(oerr.Prev).NotTo(BeNil())
				Expect(*oerr.Prev).To(Equal(areas[index-1]))
				Expect(oerr.Error()).To(ContainSubstring("starts before end"))
			} else {
				Expect(oerr.Prev).To(BeNil())
				Expect(oerr.Error()).To(ContainSubstring("empty or inverted"))
			}
		},
		Entry("empty area", []Area{area(0x1000, 0x1000, Normal)}, 0, false),
		Entry("inverted area", []Area{
			area(0x1000, 0x2000, Normal),
			area(0x3000, 0x2000, Normal),
		}, 1, false),
		Entry("overlapping areas", []Area{
			area(0x1000, 0x3000, Normal),
			area(0x2000, 0x4000, Vdso),
		}, 1, true),
		Entry("unsorted areas", []Area{
			area(0x4000, 0x5000, Normal),
			area(0x1000, 0x2000, Normal),
		}, 1, true),
	)

})
