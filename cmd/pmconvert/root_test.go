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

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thediveo/pseudomm/config"
	"github.com/thediveo/pseudomm/inherit"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/fdooze"
	. "github.com/thediveo/success"
)

var _ = Describe("pmconvert", func() {

	BeforeEach(func() {
		goodfds := Filedescriptors()
		DeferCleanup(func() {
			Eventually(Filedescriptors).Within(2 * time.Second).ProbeEvery(100 * time.Millisecond).
				ShouldNot(HaveLeakedFds(goodfds))
		})
	})

	execute := func(args ...string) error {
		GinkgoHelper()
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		GinkgoWriter.Print(out.String())
		return err
	}

	It("rejects invalid options", func() {
		Expect(execute("--dax-device", "/dev/dax0.0")).To(MatchError(config.ErrOptions))
		Expect(execute("--images-dir", "/ckpt", "--dax-device", "/dev/dax0.0", "--remote-pool", "/pool.sock")).
			To(MatchError(config.ErrOptions))
		Expect(execute("nonsense")).To(HaveOccurred())
	})

	It("rejects invalid inherited file descriptors", func() {
		Expect(execute("--images-dir", "/ckpt", "--dax-device", "/dev/dax0.0",
			"--inherit-fd", "fd[x]:foo")).To(HaveOccurred())
	})

	It("requires the pseudo_mm driver", func() {
		Expect(execute("--images-dir", "/ckpt", "--dax-device", "/dev/dax0.0")).To(
			MatchError(inherit.ErrNotInherited))
	})

	It("reports a missing image directory", func() {
		fd := Successful(unix.Open(os.DevNull, unix.O_RDWR, 0))
		Expect(execute("--images-dir", filepath.Join(GinkgoT().TempDir(), "nada"),
			"--dax-device", "/dev/dax0.0",
			"--inherit-fd", fmt.Sprintf("fd[%d]:%s", fd, inherit.DriverKey))).To(
			MatchError(ContainSubstring("cannot open image directory")))
	})

	It("reports a missing pool device", func() {
		fd := Successful(unix.Open(os.DevNull, unix.O_RDWR, 0))
		Expect(execute("--images-dir", GinkgoT().TempDir(),
			"--dax-device", filepath.Join(GinkgoT().TempDir(), "nada"),
			"--inherit-fd", fmt.Sprintf("fd[%d]:%s", fd, inherit.DriverKey))).To(
			MatchError(ContainSubstring("cannot open pool device")))
	})

	It("reports failing conversions", func() {
		fd := Successful(unix.Open(os.DevNull, unix.O_RDWR, 0))
		devpath := filepath.Join(GinkgoT().TempDir(), "pmem")
		Expect(os.WriteFile(devpath, nil, 0o600)).To(Succeed())
		Expect(execute("--images-dir", GinkgoT().TempDir(),
			"--dax-device", devpath,
			"--inherit-fd", fmt.Sprintf("fd[%d]:%s", fd, inherit.DriverKey))).To(
			MatchError(ContainSubstring("cannot convert checkpoint")))
	})

})
