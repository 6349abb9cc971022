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
	"fmt"

	"github.com/prometheus/procfs"
	"github.com/thediveo/ioctl"
	"golang.org/x/sys/unix"
)

// Linux kernel [ioctl(2)] command for [namespace relationship queries].
//
// [ioctl(2)]: https://man7.org/linux/man-pages/man2/ioctl.2.html
// [namespace relationship queries]: https://elixir.bootlin.com/linux/v6.2.11/source/include/uapi/linux/nsfs.h
const _NSIO = 0xb7

// Returns the type of namespace CLONE_NEW* value referred to by a file
// descriptor.
var NS_GET_NSTYPE = ioctl.IO(_NSIO, 0x3)

var names = map[int]string{
	unix.CLONE_NEWCGROUP: "cgroup",
	unix.CLONE_NEWIPC:    "ipc",
	unix.CLONE_NEWNS:     "mnt",
	unix.CLONE_NEWNET:    "net",
	unix.CLONE_NEWPID:    "pid",
	unix.CLONE_NEWTIME:   "time",
	unix.CLONE_NEWUSER:   "user",
	unix.CLONE_NEWUTS:    "uts",
}

// Name returns the type name of the namespace type, such as "mnt" for
// [unix.CLONE_NEWNS], or "" for unknown types.
func Name(typ int) string {
	return names[typ]
}

// Type returns the type of the namespace referenced by the passed open file
// descriptor, such as [unix.CLONE_NEWNET].
func Type(nsfd int) (int, error) {
	typ, err := unix.IoctlRetInt(nsfd, NS_GET_NSTYPE)
	if err != nil {
		return 0, fmt.Errorf("cannot determine type of namespace: %w", err)
	}
	return typ, nil
}

// Ino returns the identification (inode number) of the namespace referenced
// by the passed open file descriptor.
func Ino(nsfd int) (uint64, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(nsfd, &stat); err != nil {
		return 0, fmt.Errorf("cannot stat namespace reference %d: %w", nsfd, err)
	}
	return stat.Ino, nil
}

// CurrentIno returns the identification (inode number) of the namespace of
// the specified type the calling OS-level thread is currently attached to.
func CurrentIno(typ int) (uint64, error) {
	var stat unix.Stat_t
	if err := unix.Stat("/proc/thread-self/ns/"+Name(typ), &stat); err != nil {
		return 0, fmt.Errorf("cannot determine current %s namespace: %w", Name(typ), err)
	}
	return stat.Ino, nil
}

// SameMountNamespace returns true if the passed mount namespace reference
// refers to the mount namespace of the converter process.
func SameMountNamespace(mntnsfd int) (bool, error) {
	ino, err := Ino(mntnsfd)
	if err != nil {
		return false, err
	}
	fs, err := procfs.NewFS("/proc")
	if err != nil {
		return false, fmt.Errorf("cannot access procfs: %w", err)
	}
	self, err := fs.Self()
	if err != nil {
		return false, fmt.Errorf("cannot access own process: %w", err)
	}
	namespaces, err := self.Namespaces()
	if err != nil {
		return false, fmt.Errorf("cannot determine own namespaces: %w", err)
	}
	mntns, ok := namespaces["mnt"]
	if !ok {
		return false, fmt.Errorf("cannot determine own mnt namespace")
	}
	return uint64(mntns.Inode) == ino, nil
}
