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

package poolserver

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Store places page contents into a memory pool.
type Store interface {
	// Store the complete contents of the passed page content file at the
	// specified page offset into the pool.
	Store(content *os.File, pgoff uint64) error
	Slog() *slog.Logger
}

// Backing is a [Store] using a (regular or device) file as its memory pool.
type Backing struct {
	file     *os.File
	pagesize int64
	log      *slog.Logger
}

var _ Store = (*Backing)(nil)

// NewBacking returns a new Backing for the passed file opened for writing. The
// Backing does not take ownership of the file.
func NewBacking(file *os.File, logger *slog.Logger) *Backing {
	return &Backing{
		file:     file,
		pagesize: int64(os.Getpagesize()),
		log:      logger,
	}
}

// Slog returns the logger to use.
func (b *Backing) Slog() *slog.Logger {
	if b.log != nil {
		return b.log
	}
	return slog.Default()
}

// Store the complete contents of the passed page content file at the
// specified page offset into the backing file.
func (b *Backing) Store(content *os.File, pgoff uint64) error {
	info, err := content.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat page content: %w", err)
	}
	size := info.Size()
	if size%b.pagesize != 0 {
		return fmt.Errorf("page content size %d not page aligned", size)
	}
	offset := int64(pgoff) * b.pagesize
	n, err := io.Copy(io.NewOffsetWriter(b.file, offset), io.NewSectionReader(content, 0, size))
	if err != nil {
		return fmt.Errorf("cannot copy page content into pool: %w", err)
	}
	if n != size {
		return fmt.Errorf("short copy of page content, expected %d bytes, got %d", size, n)
	}
	return nil
}
