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

package convert

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/thediveo/pseudomm/image"
	"github.com/thediveo/pseudomm/pool"
	"github.com/thediveo/pseudomm/vma"
)

// taskContext is the conversion state of the single task currently being
// converted.
type taskContext struct {
	pid     int
	state   TaskState
	pagemap Pagemap
	pages   *os.File
	pagesID uint32
	loc     pool.Location
	id      int // pseudo address space id; -1 when invalid
}

// advance the task to the specified next state.
func (tc *taskContext) advance(to TaskState) error {
	state, err := advance(tc.state, to)
	if err != nil {
		return err
	}
	tc.state = state
	return nil
}

// release the task's image cursors.
func (tc *taskContext) release() {
	if tc.pagemap != nil {
		_ = tc.pagemap.Close()
		tc.pagemap = nil
	}
	if tc.pages != nil {
		_ = tc.pages.Close()
		tc.pages = nil
	}
}

// convertTask converts the task with the passed memory mapping image and its
// already validated areas.
func (r *run) convertTask(task image.Task, m MM, areas []vma.Area) error {
	tc := &taskContext{pid: task.PID, id: -1}
	defer tc.release()
	if err := r.stepTask(tc, m, areas); err != nil {
		return r.taskError(tc, err)
	}
	r.slog().Info("converted task",
		slog.Int("pid", tc.pid),
		slog.Int("pseudo-mm-id", tc.id),
		slog.Uint64("pgoff", tc.loc.PageOffset),
		slog.Uint64("pages", tc.loc.Pages))
	return nil
}

// stepTask advances the passed task through all its conversion states.
func (r *run) stepTask(tc *taskContext, m MM, areas []vma.Area) error {
	pagemap, err := r.images.OpenPagemap(tc.pid)
	if err != nil {
		return err
	}
	tc.pagemap = pagemap
	tc.pagesID = pagemap.PagesID()
	pages, err := r.images.OpenPages(tc.pagesID)
	if err != nil {
		return err
	}
	tc.pages = pages
	if err := tc.advance(CtlOpened); err != nil {
		return err
	}

	loc, err := r.pool.Commit(tc.pages)
	if err != nil {
		return err
	}
	tc.loc = loc
	if err := tc.advance(PagesCommitted); err != nil {
		return err
	}

	id, err := r.driver.Create()
	if err != nil {
		return err
	}
	tc.id = id
	if err := tc.advance(PseudoMmCreated); err != nil {
		return err
	}

	if err := r.replay(tc, areas); err != nil {
		return err
	}
	if err := tc.advance(MappingBuilt); err != nil {
		return err
	}

	if err := r.images.WritePseudoMMID(tc.pid, tc.id); err != nil {
		return err
	}
	condensed, err := vma.Condense(areas)
	if err != nil {
		return err
	}
	if err := r.images.StoreMM(tc.pid, m, condensed); err != nil {
		return err
	}
	if err := tc.advance(ImgWritten); err != nil {
		return err
	}

	tc.release()
	return tc.advance(Closed)
}

// replay the passed areas of a task as mappings into its pseudo address
// space, and then the present pages of its pagemap as page table entries
// pointing to the committed pages.
func (r *run) replay(tc *taskContext, areas []vma.Area) error {
	index, err := vma.NewIndex(areas)
	if err != nil {
		return err
	}
	for _, area := range areas {
		if err := r.addMap(tc, area); err != nil {
			return err
		}
	}

	var pageidx uint64
	for {
		span, err := tc.pagemap.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		switch {
		case span.InParent():
			return fmt.Errorf("%w: pages at %#x in parent checkpoint", ErrUnsupported, span.Vaddr)
		case span.Lazy():
			return fmt.Errorf("%w: lazy pages at %#x", ErrUnsupported, span.Vaddr)
		case !span.Present():
			continue
		}
		err = index.Split(span.Vaddr, span.Vaddr+span.Pages*r.pagesize,
			func(area vma.Area, start, end uint64) error {
				pages := (end - start) / r.pagesize
				defer func() { pageidx += pages }()
				if area.Kind.Anchor() {
					return nil
				}
				return r.driver.SetupPT(tc.id, start, end-start, tc.loc.PageOffset+pageidx)
			})
		if err != nil {
			return err
		}
	}
	if pageidx != tc.loc.Pages {
		return fmt.Errorf("pagemap references %d pages, but pages image %d has %d pages",
			pageidx, tc.pagesID, tc.loc.Pages)
	}
	r.slog().Debug("replayed task memory",
		slog.Int("pid", tc.pid),
		slog.Int("areas", index.Len()),
		slog.Uint64("pages", pageidx))
	return nil
}

// unreplayable are the status bits of areas whose contents live outside the
// task's pagemap.
const unreplayable = vma.StatusSysVIPC | vma.StatusSocket | vma.StatusAIORing | vma.StatusMemfd

// supported returns an error for the first area that cannot be replayed into
// a pseudo address space.
func supported(areas []vma.Area) error {
	for _, area := range areas {
		if area.Status&unreplayable != 0 {
			return fmt.Errorf("%w: area %s with status %#x", ErrUnsupported, area, area.Status)
		}
	}
	return nil
}

// addMap adds the passed area as a mapping to the task's pseudo address
// space. Anchor areas are left to the restore path, as are non-regular areas.
func (r *run) addMap(tc *taskContext, area vma.Area) error {
	switch {
	case area.Kind.Anchor():
		return nil
	case area.Status&vma.StatusRegular == 0:
		return nil
	case area.FileBacked():
		f, err := r.images.OpenMapped(area)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		err = r.driver.AddMap(tc.id, area.Start, area.Len(), int(area.Prot), int(area.Flags),
			int(f.Fd()), int64(area.Pgoff))
		runtime.KeepAlive(f)
		return err
	default:
		return r.driver.AddMap(tc.id, area.Start, area.Len(), int(area.Prot), int(area.Flags),
			-1, 0)
	}
}
