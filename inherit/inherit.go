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

package inherit

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/sys/unix"
)

// Well-known keys of inherited file descriptors.
const (
	DriverKey          = "pseudo-mm-drv"
	NamespaceKeyPrefix = "switch-ns-"
)

// NamespaceKey returns the key of an inherited namespace file descriptor for
// the named namespace type, such as "mnt" or "net".
func NamespaceKey(nstype string) string {
	return NamespaceKeyPrefix + nstype
}

// ErrNotInherited signals that there is no inherited file descriptor for a
// particular key.
var ErrNotInherited = errors.New("no inherited file descriptor")

var specRe = regexp.MustCompile(`^fd\[(\d+)\]:(\S+)$`)

// Parse an inherited file descriptor in the form “fd[N]:key”,
// returning the fd number and key.
func Parse(spec string) (fd int, key string, err error) {
	m := specRe.FindStringSubmatch(spec)
	if m == nil {
		return -1, "", fmt.Errorf("invalid inherited fd specification %q, expected fd[N]:key", spec)
	}
	fd, err = strconv.Atoi(m[1])
	if err != nil {
		return -1, "", fmt.Errorf("invalid inherited fd number in %q: %w", spec, err)
	}
	return fd, m[2], nil
}

// Store of inherited file descriptors.
//
// # Important
//
// Store cannot(!) be used concurrently.
type Store struct {
	fds map[string]int
}

// New returns a new, empty Store.
func New() *Store {
	return &Store{fds: map[string]int{}}
}

// Add the inherited file descriptor specified in the form “fd[N]:key”. The
// file descriptor must be open. Add fails if the key has already been added.
// The Store takes ownership of the file descriptor.
func (s *Store) Add(spec string) error {
	fd, key, err := Parse(spec)
	if err != nil {
		return err
	}
	return s.AddFd(key, fd)
}

// AddFd adds the inherited file descriptor under the specified key. The
// Store takes ownership of the file descriptor.
func (s *Store) AddFd(key string, fd int) error {
	if _, ok := s.fds[key]; ok {
		return fmt.Errorf("duplicate inherited file descriptor for %q", key)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return fmt.Errorf("inherited fd %d for %q not open: %w", fd, key, err)
	}
	// not to be passed on to child processes.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		return fmt.Errorf("cannot set close-on-exec on inherited fd %d: %w", fd, err)
	}
	s.fds[key] = fd
	return nil
}

// Lookup returns the file descriptor inherited for the specified key, or
// [ErrNotInherited].
func (s *Store) Lookup(key string) (int, error) {
	fd, ok := s.fds[key]
	if !ok {
		return -1, fmt.Errorf("%w for %q", ErrNotInherited, key)
	}
	return fd, nil
}

// Has returns true if there is a file descriptor inherited for the specified
// key.
func (s *Store) Has(key string) bool {
	_, ok := s.fds[key]
	return ok
}

// Close all inherited file descriptors, returning the first error
// encountered.
func (s *Store) Close() error {
	var err error
	for key, fd := range s.fds {
		if closeerr := unix.Close(fd); closeerr != nil && err == nil {
			err = fmt.Errorf("cannot close inherited fd %d for %q: %w", fd, key, closeerr)
		}
		delete(s.fds, key)
	}
	return err
}
