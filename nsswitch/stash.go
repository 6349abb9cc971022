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

	"golang.org/x/sys/unix"
)

// Stash remembers the mount namespace and working directory of the OS-level
// thread that created it, in order to restore them later.
type Stash struct {
	mntnsfd int
	cwdfd   int
}

// NewStash returns a new Stash for the mount namespace and working directory
// of the calling OS-level thread.
func NewStash() (*Stash, error) {
	mntnsfd, err := unix.Open("/proc/thread-self/ns/mnt", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot stash mnt namespace: %w", ErrNamespace, err)
	}
	cwdfd, err := unix.Open(".", unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(mntnsfd)
		return nil, fmt.Errorf("%w: cannot stash working directory: %w", ErrNamespace, err)
	}
	return &Stash{mntnsfd: mntnsfd, cwdfd: cwdfd}, nil
}

// Restore the stashed mount namespace and working directory on the calling
// OS-level thread, which must have unshared its filesystem attributes.
func (s *Stash) Restore() error {
	if err := unix.Setns(s.mntnsfd, unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("%w: cannot restore mnt namespace: %w", ErrNamespace, err)
	}
	if err := unix.Fchdir(s.cwdfd); err != nil {
		return fmt.Errorf("%w: cannot restore working directory: %w", ErrNamespace, err)
	}
	return nil
}

// Close the stash, releasing its references to the stashed mount namespace and
// working directory.
func (s *Stash) Close() error {
	err := unix.Close(s.mntnsfd)
	if cwderr := unix.Close(s.cwdfd); err == nil {
		err = cwderr
	}
	s.mntnsfd, s.cwdfd = -1, -1
	return err
}
