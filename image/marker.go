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

package image

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Marker artifact names.
const (
	pseudoMMIDTemplate = "pseudo_mm_id-%d"
	committedPagesName = "pseudo_mm_nr_pages"
)

// WritePseudoMMID writes the marker artifact for the task with the specified
// PID, recording the id of the pseudo address space created for the task.
func (d *Dir) WritePseudoMMID(pid int, id int) error {
	if err := d.create(fmt.Sprintf(pseudoMMIDTemplate, pid), writeString(strconv.Itoa(id))); err != nil {
		return err
	}
	d.slog().Info("recorded pseudo address space",
		slog.Int("pid", pid),
		slog.Int("pseudo-mm-id", id))
	return nil
}

// ReadPseudoMMID returns the id of the pseudo address space previously recorded
// for the task with the specified PID. Only positive ids are valid.
func (d *Dir) ReadPseudoMMID(pid int) (int, error) {
	name := fmt.Sprintf(pseudoMMIDTemplate, pid)
	id, err := d.readDecimal(name)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %s: invalid pseudo address space id %d", ErrFormat, name, id)
	}
	return id, nil
}

// WriteCommittedPages writes the marker artifact recording the number of pages
// committed into the memory pool.
func (d *Dir) WriteCommittedPages(pages uint64) error {
	return d.create(committedPagesName, writeString(strconv.FormatUint(pages, 10)))
}

func writeString(s string) func(f *os.File) error {
	return func(f *os.File) error {
		_, err := f.WriteString(s)
		return err
	}
}

func (d *Dir) readDecimal(name string) (int, error) {
	f, err := d.open(name)
	if err != nil {
		return 0, fmt.Errorf("cannot open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()
	b, err := io.ReadAll(io.LimitReader(f, 32))
	if err != nil {
		return 0, fmt.Errorf("cannot read %s: %w", name, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFormat, name, err)
	}
	return n, nil
}
