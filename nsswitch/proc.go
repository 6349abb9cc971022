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
	"os"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
)

// mountPrivateProc attaches the calling OS-level thread to a private copy of
// its current mount namespace and mounts a fresh procfs instance onto /proc
// in it.
func mountPrivateProc() error {
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("%w: cannot create private mnt namespace: %w", ErrNamespace, err)
	}
	if err := unix.Mount("none", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("%w: cannot change / mount propagation to private: %w", ErrNamespace, err)
	}
	if err := unix.Mount("proc", "/proc", "proc",
		unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC|unix.MS_RELATIME, ""); err != nil {
		return fmt.Errorf("%w: cannot mount procfs: %w", ErrNamespace, err)
	}
	mounted, err := procMounted()
	if err != nil {
		return err
	}
	if !mounted {
		return fmt.Errorf("%w: no procfs on /proc", ErrNamespace)
	}
	return nil
}

// procMounted returns true if procfs is mounted on /proc in the mount
// namespace of the calling OS-level thread.
func procMounted() (bool, error) {
	f, err := os.Open("/proc/thread-self/mountinfo")
	if err != nil {
		return false, fmt.Errorf("%w: cannot open mountinfo: %w", ErrNamespace, err)
	}
	defer func() { _ = f.Close() }()
	infos, err := mountinfo.GetMountsFromReader(f, func(info *mountinfo.Info) (skip, stop bool) {
		return info.Mountpoint != "/proc", false
	})
	if err != nil {
		return false, fmt.Errorf("%w: cannot parse mountinfo: %w", ErrNamespace, err)
	}
	// the top-most mount comes last.
	return len(infos) > 0 && infos[len(infos)-1].FSType == "proc", nil
}
