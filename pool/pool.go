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

package pool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var (
	// ErrUnaligned signals page content whose size is not a multiple of the
	// page size.
	ErrUnaligned = errors.New("page content not page aligned")
	// ErrProtocol signals a failed exchange with a remote pool server.
	ErrProtocol = errors.New("remote pool protocol failure")
)

// Backend stores page content at a particular page offset into a memory pool.
// Backend is implemented only by [*Local] and [*Remote].
type Backend interface {
	// Kind returns the kind of backend, such as "local" or "remote".
	Kind() string
	io.Closer

	// store size bytes of the passed page content at the specified page
	// offset into the pool.
	store(content *os.File, pgoff uint64, size int64) error
}

// Location tells where committed page content now lives inside the pool.
type Location struct {
	PageOffset uint64 // offset in pages into the pool
	Pages      uint64 // number of pages
}

// Pool commits page content into a memory pool using a single backend,
// keeping track of the next free page offset and of the number of pages
// committed so far.
//
// # Important
//
// Pool cannot(!) be used concurrently.
type Pool struct {
	backend   Backend
	pagesize  uint64
	cursor    uint64
	committed uint64
	log       *slog.Logger
}

// New returns a new Pool using the passed backend, with its page offset cursor
// starting at the beginning of the pool. The Pool takes ownership of the
// backend.
func New(backend Backend, logger *slog.Logger) *Pool {
	return NewAt(backend, 0, logger)
}

// NewAt returns a new Pool using the passed backend, with its page offset
// cursor starting at the specified page offset. The Pool takes ownership of
// the backend.
func NewAt(backend Backend, pgoff uint64, logger *slog.Logger) *Pool {
	return &Pool{
		backend:  backend,
		pagesize: uint64(os.Getpagesize()),
		cursor:   pgoff,
		log:      logger,
	}
}

func (p *Pool) slog() *slog.Logger {
	if p.log != nil {
		return p.log
	}
	return slog.Default()
}

// Kind returns the kind of backend used by this pool.
func (p *Pool) Kind() string { return p.backend.Kind() }

// Cursor returns the page offset where the next commit will be placed.
func (p *Pool) Cursor() uint64 { return p.cursor }

// Committed returns the number of pages committed so far.
func (p *Pool) Committed() uint64 { return p.committed }

// RegistrationFd returns the file descriptor to register with the pseudo_mm
// driver, if the backend has one. Only local pools have such a descriptor.
func (p *Pool) RegistrationFd() (int, bool) {
	if local, ok := p.backend.(*Local); ok {
		return int(local.device.Fd()), true
	}
	return -1, false
}

// Commit the complete page content of the passed file into the pool, returning
// the location of the committed pages. Commit fails with [ErrUnaligned] if the
// content size isn't a multiple of the page size. Committing empty content
// succeeds without changing anything. The cursor and the committed page count
// only advance on success.
func (p *Pool) Commit(content *os.File) (Location, error) {
	info, err := content.Stat()
	if err != nil {
		return Location{}, fmt.Errorf("cannot stat page content: %w", err)
	}
	size := info.Size()
	if uint64(size)%p.pagesize != 0 {
		return Location{}, fmt.Errorf("%s has size %d: %w", content.Name(), size, ErrUnaligned)
	}
	loc := Location{PageOffset: p.cursor, Pages: uint64(size) / p.pagesize}
	if loc.Pages == 0 {
		return loc, nil
	}
	if err := p.backend.store(content, loc.PageOffset, size); err != nil {
		p.slog().Error("cannot commit page content",
			slog.String("backend", p.backend.Kind()),
			slog.String("content", content.Name()),
			slog.String("err", err.Error()))
		return Location{}, err
	}
	p.cursor += loc.Pages
	p.committed += loc.Pages
	p.slog().Debug("committed page content",
		slog.String("backend", p.backend.Kind()),
		slog.String("content", content.Name()),
		slog.Uint64("pgoff", loc.PageOffset),
		slog.Uint64("pages", loc.Pages))
	return loc, nil
}

// Close the pool's backend.
func (p *Pool) Close() error {
	return p.backend.Close()
}
