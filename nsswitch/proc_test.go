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

package nsswitch

import (
	"os"
	"time"

	"github.com/thediveo/pseudomm/nstest"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("private procfs", func() {

	It("finds procfs mounted on /proc", func() {
		Expect(procMounted()).To(BeTrue())
	})

	It("mounts a private procfs instance", func() {
		if os.Getuid() != 0 {
			Skip("needs root")
		}
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			leave := nstest.EnterTransientMount()
			defer leave()
			transient := nstest.CurrentIno(unix.CLONE_NEWNS)
			Expect(mountPrivateProc()).To(Succeed())
			Expect(nstest.CurrentIno(unix.CLONE_NEWNS)).NotTo(Equal(transient))
			Expect(Successful(procMounted())).To(BeTrue())
			Expect(Successful(os.ReadFile("/proc/thread-self/comm"))).NotTo(BeEmpty())
		}()
		Eventually(done).Within(5 * time.Second).Should(BeClosed())
	})

})
