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
	"fmt"
	"log/slog"
	"os"

	"github.com/thediveo/pseudomm/image"
	"github.com/thediveo/pseudomm/inherit"
	"github.com/thediveo/pseudomm/nsswitch"
	"github.com/thediveo/pseudomm/vma"
)

// Driver creates and populates pseudo address spaces; it is implemented by
// [*driver.Client].
type Driver interface {
	Register(poolfd int) error
	Create() (int, error)
	AddMap(id int, start, length uint64, prot, flags int, fd int, offset int64) error
	SetupPT(id int, start, length uint64, pgoff uint64) error
}

// MM is the memory mapping image of a single task.
type MM interface {
	Areas() []vma.Area
}

// Pagemap iterates over the page runs of a task's pagemap image.
type Pagemap interface {
	PagesID() uint32
	Next() (image.Run, error)
	Close() error
}

// Images gives access to the checkpoint images of a container; use [DirImages]
// for an image directory.
type Images interface {
	CheckInventory() (uint32, error)
	Tasks() ([]image.Task, error)
	MountNamespaces(tasks []image.Task) ([]uint32, error)
	LoadFiles() error
	LoadMM(pid int) (MM, error)
	StoreMM(pid int, m MM, areas []vma.Area) error
	OpenMapped(area vma.Area) (*os.File, error)
	OpenPagemap(pid int) (Pagemap, error)
	OpenPages(id uint32) (*os.File, error)
	WritePseudoMMID(pid int, id int) error
	WriteCommittedPages(pages uint64) error
}

// SharingDetector detects memory areas shared copy-on-write between tasks. It
// gets passed the memory areas of all tasks before any task is converted.
type SharingDetector interface {
	DetectSharing(tasks []TaskAreas) error
}

// TaskAreas are the memory areas of a single task.
type TaskAreas struct {
	PID   int
	Areas []vma.Area
}

// Namespaces runs functions in the namespaces of the checkpointed container.
type Namespaces interface {
	// Needed returns true if the converter needs to switch into the
	// container's namespaces.
	Needed() (bool, error)
	// Do runs fn in the container's namespaces, given the number of distinct
	// mount namespaces the container's tasks were in.
	Do(mntNamespaces int, fn func() error) error
}

// DirImages returns the checkpoint images of the passed image directory.
func DirImages(dir *image.Dir) Images {
	return dirImages{Dir: dir}
}

type dirImages struct {
	*image.Dir
}

func (d dirImages) LoadMM(pid int) (MM, error) {
	m, err := d.Dir.LoadMM(pid)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d dirImages) StoreMM(pid int, m MM, areas []vma.Area) error {
	mm, ok := m.(*image.MM)
	if !ok {
		return fmt.Errorf("cannot store memory mappings of task %d: not loaded from image", pid)
	}
	return d.Dir.StoreMM(pid, mm, areas)
}

func (d dirImages) OpenPagemap(pid int) (Pagemap, error) {
	pm, err := d.Dir.OpenPagemap(pid)
	if err != nil {
		return nil, err
	}
	return pm, nil
}

// InheritedNamespaces returns the container namespaces inherited through the
// passed store. Switching is needed only when a mount namespace was inherited
// that differs from the converter's current mount namespace.
func InheritedNamespaces(store *inherit.Store, privateProc bool, logger *slog.Logger) Namespaces {
	return &inheritedNamespaces{
		store:       store,
		privateProc: privateProc,
		log:         logger,
	}
}

type inheritedNamespaces struct {
	store       *inherit.Store
	privateProc bool
	log         *slog.Logger
}

func (n *inheritedNamespaces) Needed() (bool, error) {
	key := inherit.NamespaceKey("mnt")
	if !n.store.Has(key) {
		return false, nil
	}
	fd, err := n.store.Lookup(key)
	if err != nil {
		return false, err
	}
	same, err := nsswitch.SameMountNamespace(fd)
	if err != nil {
		return false, err
	}
	return !same, nil
}

func (n *inheritedNamespaces) Do(mntNamespaces int, fn func() error) error {
	return nsswitch.New(n.store,
		nsswitch.WithMountNamespaces(mntNamespaces),
		nsswitch.WithPrivateProc(n.privateProc),
		nsswitch.WithLogger(n.log),
	).Do(fn)
}
