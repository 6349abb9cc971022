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
	"log/slog"
	"runtime"

	"golang.org/x/sys/unix"
)

// Switch runs functions inside the namespaces of a container.
type Switch struct {
	store         Lookuper
	mntNamespaces int
	privateProc   bool
	log           *slog.Logger
}

// Option configures a [Switch].
type Option func(*Switch)

// WithMountNamespaces tells the Switch the number of distinct mount
// namespaces the checkpointed container's tasks were in. More than one mount
// namespace is unsupported.
func WithMountNamespaces(n int) Option {
	return func(s *Switch) { s.mntNamespaces = n }
}

// WithPrivateProc controls mounting a private procfs instance on /proc;
// defaults to true.
func WithPrivateProc(enable bool) Option {
	return func(s *Switch) { s.privateProc = enable }
}

// WithLogger sets the logger to use; otherwise, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Switch) { s.log = logger }
}

// New returns a new Switch into the namespaces inherited through the passed
// store.
func New(store Lookuper, opts ...Option) *Switch {
	s := &Switch{
		store:       store,
		privateProc: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Switch) slog() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}

// Do runs fn synchronously on a separate go routine locked to a throw-away
// OS-level thread that is attached to the container's namespaces, returning
// fn's error. When fn returns, the thread gets its original mount namespace
// and working directory restored before it is thrown away. Panics in fn are
// re-raised on the caller's go routine.
func (s *Switch) Do(fn func() error) error {
	if s.mntNamespaces > 1 {
		return fmt.Errorf("%w: %d mount namespaces, but only a single mount namespace is supported",
			ErrNamespace, s.mntNamespaces)
	}

	type result struct {
		err   error
		panic any
	}
	resultCh := make(chan result)
	go func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res.panic = r
			}
			resultCh <- res
		}()
		// Never unlock, so the tainted OS-level thread gets thrown away when
		// this go routine finishes.
		runtime.LockOSThread()
		res.err = s.do(fn)
	}()
	res := <-resultCh
	if res.panic != nil {
		panic(res.panic)
	}
	return res.err
}

// do the switch on the current, locked OS-level thread and then run fn.
func (s *Switch) do(fn func() error) error {
	if err := unix.Unshare(unix.CLONE_FS); err != nil {
		return fmt.Errorf("%w: cannot unshare filesystem attributes: %w", ErrNamespace, err)
	}
	stash, err := NewStash()
	if err != nil {
		return err
	}
	defer func() { _ = stash.Close() }()

	joined, err := Join(s.store, s.slog())
	if err != nil {
		return err
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("%w: cannot change into root directory: %w", ErrNamespace, err)
	}
	if s.privateProc {
		if err := mountPrivateProc(); err != nil {
			return err
		}
	}
	s.slog().Info("switched into container namespaces",
		slog.Int("joined", joined),
		slog.Int("tid", unix.Gettid()))

	fnerr := fn()
	if err := stash.Restore(); err != nil && fnerr == nil {
		return err
	}
	return fnerr
}
