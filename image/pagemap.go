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
	"os"

	"github.com/checkpoint-restore/go-criu/v7/crit/images/pagemap"
	"google.golang.org/protobuf/proto"
)

// Pagemap entry flags.
const (
	PageInParent = 1 << 0
	PageLazy     = 1 << 1
	PagePresent  = 1 << 2
)

// Run is a run of consecutive pages of a task's pagemap.
type Run struct {
	Vaddr uint64
	Pages uint64
	Flags uint32
}

// Present returns true if the run's page contents are in the pages image.
func (r Run) Present() bool { return r.Flags&PagePresent != 0 }

// InParent returns true if the run's page contents live in a parent
// checkpoint.
func (r Run) InParent() bool { return r.Flags&PageInParent != 0 }

// Lazy returns true if the run's page contents are to be lazily fetched.
func (r Run) Lazy() bool { return r.Flags&PageLazy != 0 }

// Pagemap is a cursor over the runs of a task's pagemap image.
type Pagemap struct {
	name    string
	entries []proto.Message
	pagesID uint32
}

// OpenPagemap opens the pagemap image of the task with the specified PID.
func (d *Dir) OpenPagemap(pid int) (*Pagemap, error) {
	name := fmt.Sprintf("pagemap-%d.img", pid)
	f, err := d.open(name)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()
	entries, err := decodeImage(f, name, pagemapMagic, &pagemap.PagemapEntry{})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s: missing head", ErrFormat, name)
	}
	head, ok := entries[0].(*pagemap.PagemapHead)
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing head", ErrFormat, name)
	}
	return &Pagemap{name: name, entries: entries[1:], pagesID: head.GetPagesId()}, nil
}

// PagesID returns the id of the pages image holding the page contents.
func (p *Pagemap) PagesID() uint32 { return p.pagesID }

// Next returns the next run of pages, or io.EOF when there are no more runs.
func (p *Pagemap) Next() (Run, error) {
	if len(p.entries) == 0 {
		return Run{}, io.EOF
	}
	entry, ok := p.entries[0].(*pagemap.PagemapEntry)
	if !ok {
		return Run{}, fmt.Errorf("%w: %s: unexpected entry %T", ErrFormat, p.name, p.entries[0])
	}
	p.entries = p.entries[1:]
	flags := entry.GetFlags()
	if entry.Flags == nil {
		// older images only know about pages in a parent checkpoint.
		flags = PagePresent
		if entry.GetInParent() {
			flags = PageInParent
		}
	}
	return Run{
		Vaddr: entry.GetVaddr(),
		Pages: uint64(entry.GetNrPages()),
		Flags: flags,
	}, nil
}

// Close the pagemap image.
func (p *Pagemap) Close() error {
	p.entries = nil
	return nil
}

// OpenPages opens the pages image with the specified id.
func (d *Dir) OpenPages(id uint32) (*os.File, error) {
	name := fmt.Sprintf("pages-%d.img", id)
	f, err := d.open(name)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", name, err)
	}
	return f, nil
}
