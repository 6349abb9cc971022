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

package nstest

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2" //nolint:staticcheck // ST1001 rule does not apply
	. "github.com/onsi/gomega"    //nolint:staticcheck // ST1001 rule does not apply
)

var names = map[int]string{
	unix.CLONE_NEWIPC: "ipc",
	unix.CLONE_NEWNS:  "mnt",
	unix.CLONE_NEWNET: "net",
	unix.CLONE_NEWUTS: "uts",
}

func name(typ int) string {
	GinkgoHelper()

	n, ok := names[typ]
	Expect(ok).To(BeTrue(), "unsupported type of namespace %d", typ)
	return n
}

// Current returns a file descriptor referencing the calling OS-level thread's
// current namespace of the specified type, scheduling it to be closed at the
// end of the current test.
func Current(typ int) int {
	GinkgoHelper()

	n := name(typ)
	nsfd, err := unix.Open("/proc/thread-self/ns/"+n, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	Expect(err).NotTo(HaveOccurred(),
		"cannot determine current %s namespace from procfs", n)
	DeferCleanup(func() { _ = unix.Close(nsfd) })
	return nsfd
}

// Ino returns the inode number of the namespace referenced either by an open
// file descriptor or a VFS path name.
func Ino[R ~int | ~string](ref R) uint64 {
	GinkgoHelper()

	var stat unix.Stat_t
	switch ref := any(ref).(type) {
	case int:
		Expect(unix.Fstat(ref, &stat)).To(Succeed(), "cannot stat namespace reference %d", ref)
	case string:
		Expect(unix.Stat(ref, &stat)).To(Succeed(), "cannot stat namespace reference %q", ref)
	}
	return stat.Ino
}

// CurrentIno returns the inode number of the namespace of the specified type
// the calling OS-level thread is currently attached to.
func CurrentIno(typ int) uint64 {
	GinkgoHelper()

	return Ino("/proc/thread-self/ns/" + name(typ))
}

// NewTransient creates a new IPC, network, or UTS namespace without entering
// it, returning a file descriptor referencing the new namespace. The file
// descriptor gets automatically closed at the end of the current test.
//
// When NewTransient returns, the caller's go routine is in the same OS-level
// thread lock/unlock state as before the call.
func NewTransient(typ int) int {
	GinkgoHelper()

	n := name(typ)
	Expect(typ).To(BeElementOf([]int{
		unix.CLONE_NEWIPC,
		unix.CLONE_NEWNET,
		unix.CLONE_NEWUTS,
	}), "unsupported type %s", n)

	// if anything below breaks we won't unlock the OS-level thread on purpose
	// so that it gets thrown away as the unit test fails and unwinds.
	runtime.LockOSThread()

	callersNamespace, err := unix.Open("/proc/thread-self/ns/"+n, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	Expect(err).NotTo(HaveOccurred(),
		"cannot determine current %s namespace from procfs", n)
	defer func() { _ = unix.Close(callersNamespace) }()

	Expect(unix.Unshare(typ)).To(Succeed(),
		"cannot create new %s namespace", n)
	newNamespace, err := unix.Open("/proc/thread-self/ns/"+n, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	Expect(err).NotTo(HaveOccurred(),
		"cannot determine new %s namespace from procfs", n)
	Expect(unix.Setns(callersNamespace, typ)).To(Succeed(),
		"cannot switch back into original %s namespace", n)
	DeferCleanup(func() { _ = unix.Close(newNamespace) })

	runtime.UnlockOSThread()
	return newNamespace
}

// NewTransientMount creates a new mount namespace with private mount
// propagation, returning a file descriptor referencing it. The new mount
// namespace is created on a separate, idling OS-level thread that terminates
// at the end of the current test; the returned file descriptor gets closed
// then too.
func NewTransientMount() int {
	GinkgoHelper()

	done := make(chan struct{})
	DeferCleanup(func() { close(done) })

	readyCh := make(chan int)
	go func() {
		defer GinkgoRecover()
		defer close(readyCh)
		// never unlocked, as we cannot undo unsharing CLONE_FS.
		runtime.LockOSThread()

		Expect(unix.Unshare(unix.CLONE_FS|unix.CLONE_NEWNS)).To(Succeed(),
			"cannot create new mount namespace")
		// keep mount point changes from propagating back into the host.
		Expect(unix.Mount("none", "/", "/", unix.MS_REC|unix.MS_PRIVATE, "")).To(
			Succeed(), "cannot change / mount propagation to private")
		mntnsfd, err := unix.Open("/proc/thread-self/ns/mnt", unix.O_RDONLY|unix.O_CLOEXEC, 0)
		Expect(err).NotTo(HaveOccurred(), "cannot reference new mount namespace")

		readyCh <- mntnsfd
		<-done
	}()
	mntnsfd, ok := <-readyCh
	Expect(ok).To(BeTrue(), "cannot create transient mount namespace")
	DeferCleanup(func() { _ = unix.Close(mntnsfd) })
	return mntnsfd
}

// EnterTransientMount creates and enters a new mount namespace with private
// mount propagation, returning a function that needs to be defer'ed in order
// to switch back into the caller's original mount namespace.
//
// Note: the current OS-level thread won't be unlocked when the calling test
// returns, as we cannot undo unsharing filesystem attributes (using CLONE_FS)
// such as the root directory, current directory, and umask attributes.
func EnterTransientMount() func() {
	GinkgoHelper()

	runtime.LockOSThread() // ...kind of point of no return

	callersMountNamespace, err := unix.Open("/proc/thread-self/ns/mnt", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	Expect(err).NotTo(HaveOccurred(), "cannot determine current mount namespace from procfs")

	Expect(unix.Unshare(unix.CLONE_FS|unix.CLONE_NEWNS)).To(Succeed(),
		"cannot create new mount namespace")
	Expect(unix.Mount("none", "/", "/", unix.MS_REC|unix.MS_PRIVATE, "")).To(Succeed(),
		"cannot change / mount propagation to private")

	// not DeferCleanup'ed, as the caller's locked go routine needs to be
	// restored in correct defer order.
	return func() {
		if err := unix.Setns(callersMountNamespace, unix.CLONE_NEWNS); err != nil {
			panic(fmt.Sprintf("cannot restore original mount namespace, reason: %s", err.Error()))
		}
		_ = unix.Close(callersMountNamespace)
		// do NOT unlock the OS-level thread, as we cannot undo unsharing CLONE_FS
	}
}
