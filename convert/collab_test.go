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
	"os"

	"github.com/thediveo/pseudomm/image"
	"github.com/thediveo/pseudomm/inherit"
	"github.com/thediveo/pseudomm/vma"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("collaborators", func() {

	It("refuses to store mappings not loaded from an image directory", func() {
		dir := Successful(image.Open(GinkgoT().TempDir()))
		defer func() { _ = dir.Close() }()
		images := DirImages(dir)
		Expect(images.StoreMM(1, &fakeMM{}, []vma.Area{})).To(
			MatchError(ContainSubstring("not loaded from image")))
		Expect(images.LoadMM(1)).Error().To(HaveOccurred())
		Expect(images.OpenPagemap(1)).Error().To(HaveOccurred())
	})

	It("doesn't switch without an inherited mount namespace", func() {
		store := inherit.New()
		defer func() { _ = store.Close() }()
		Expect(InheritedNamespaces(store, true, nil).Needed()).To(BeFalse())
	})

	It("doesn't switch into the current mount namespace", func() {
		fd := Successful(unix.Open("/proc/self/ns/mnt", unix.O_RDONLY, 0))
		store := inherit.New()
		defer func() { _ = store.Close() }()
		Expect(store.AddFd(inherit.NamespaceKey("mnt"), fd)).To(Succeed())
		Expect(InheritedNamespaces(store, true, nil).Needed()).To(BeFalse())
	})

	It("runs in the container namespaces", func() {
		if os.Geteuid() != 0 {
			Skip("needs root")
		}
		store := inherit.New()
		defer func() { _ = store.Close() }()
		var pid int
		Expect(InheritedNamespaces(store, false, nil).Do(1, func() error {
			pid = os.Getpid()
			return nil
		})).To(Succeed())
		Expect(pid).To(Equal(os.Getpid()))
	})

})
