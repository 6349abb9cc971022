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

package poolserver

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var pagesize = os.Getpagesize()

// contentFile returns an open file with the specified number of pages, each
// page filled with its own letter starting at first.
func contentFile(pages int, first byte) *os.File {
	GinkgoHelper()
	var b bytes.Buffer
	for p := range pages {
		b.Write(bytes.Repeat([]byte{first + byte(p)}, pagesize))
	}
	path := filepath.Join(GinkgoT().TempDir(), "pages-1.img")
	Expect(os.WriteFile(path, b.Bytes(), 0o600)).To(Succeed())
	f := Successful(os.Open(path))
	DeferCleanup(func() { _ = f.Close() })
	return f
}

// backingFile returns a new, empty backing file open for reading and writing.
func backingFile() *os.File {
	GinkgoHelper()
	f := Successful(os.Create(filepath.Join(GinkgoT().TempDir(), "pool")))
	DeferCleanup(func() { _ = f.Close() })
	return f
}

var _ = Describe("backing", func() {

	It("places page contents at their page offsets", func() {
		f := backingFile()
		b := NewBacking(f, nil)
		Expect(b.Slog()).NotTo(BeNil())

		Expect(b.Store(contentFile(2, 'A'), 1)).To(Succeed())
		Expect(b.Store(contentFile(1, 'x'), 3)).To(Succeed())

		contents := Successful(os.ReadFile(f.Name()))
		Expect(contents).To(HaveLen(4 * pagesize))
		Expect(contents[0]).To(BeZero())
		Expect(contents[pagesize]).To(Equal(byte('A')))
		Expect(contents[2*pagesize]).To(Equal(byte('B')))
		Expect(contents[3*pagesize]).To(Equal(byte('x')))
	})

	It("rejects unaligned page contents", func() {
		path := filepath.Join(GinkgoT().TempDir(), "pages-1.img")
		Expect(os.WriteFile(path, []byte("tweety pie"), 0o600)).To(Succeed())
		content := Successful(os.Open(path))
		defer func() { _ = content.Close() }()
		Expect(NewBacking(backingFile(), nil).Store(content, 0)).To(
			MatchError(ContainSubstring("not page aligned")))
	})

	It("reports a read-only backing", func() {
		path := filepath.Join(GinkgoT().TempDir(), "pool")
		Expect(os.WriteFile(path, nil, 0o600)).To(Succeed())
		f := Successful(os.Open(path))
		defer func() { _ = f.Close() }()
		Expect(NewBacking(f, nil).Store(contentFile(1, 'a'), 0)).To(
			MatchError(ContainSubstring("cannot copy page content into pool")))
	})

})
