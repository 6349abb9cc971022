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
	"log/slog"
	"os"

	"github.com/checkpoint-restore/go-criu/v7/crit/images/mm"
	criuvma "github.com/checkpoint-restore/go-criu/v7/crit/images/vma"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/thediveo/pseudomm/vma"
	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/proto"
)

// MM is the memory mapping image of a single task.
type MM struct {
	entry *mm.MmEntry
}

// Areas returns the task's memory areas in image order.
func (m *MM) Areas() []vma.Area {
	areas := make([]vma.Area, 0, len(m.entry.GetVmas()))
	for _, entry := range m.entry.GetVmas() {
		areas = append(areas, areaOf(entry))
	}
	return areas
}

func areaOf(entry *criuvma.VmaEntry) vma.Area {
	return vma.Area{
		Start:  entry.GetStart(),
		End:    entry.GetEnd(),
		Prot:   entry.GetProt(),
		Flags:  entry.GetFlags(),
		Pgoff:  entry.GetPgoff(),
		Kind:   vma.KindOf(entry.GetStatus()),
		Status: entry.GetStatus(),
		Shmid:  entry.GetShmid(),
	}
}

func entryOf(area vma.Area) *criuvma.VmaEntry {
	return &criuvma.VmaEntry{
		Start:  proto.Uint64(area.Start),
		End:    proto.Uint64(area.End),
		Pgoff:  proto.Uint64(area.Pgoff),
		Shmid:  proto.Uint64(area.Shmid),
		Prot:   proto.Uint32(area.Prot),
		Flags:  proto.Uint32(area.Flags),
		Status: proto.Uint32(area.Status),
		Fd:     proto.Int64(-1),
	}
}

func mmImg(pid int) string { return fmt.Sprintf("mm-%d.img", pid) }

// LoadMM returns the memory mapping image of the task with the specified PID.
func (d *Dir) LoadMM(pid int) (*MM, error) {
	entry, err := readOne(d, mmImg(pid), mmMagic, &mm.MmEntry{})
	if err != nil {
		return nil, err
	}
	return &MM{entry: entry}, nil
}

// StoreMM replaces the memory mapping image of the task with the specified
// PID, using the passed areas instead of the areas of the loaded image. All
// other task memory properties are retained. Areas that match an area of the
// loaded image in kind and bounds are stored with all their original
// properties.
func (d *Dir) StoreMM(pid int, m *MM, areas []vma.Area) error {
	originals := make(map[uint64]*criuvma.VmaEntry, len(m.entry.GetVmas()))
	for _, entry := range m.entry.GetVmas() {
		originals[entry.GetStart()] = entry
	}
	entries := make([]*criuvma.VmaEntry, 0, len(areas))
	for _, area := range areas {
		if orig, ok := originals[area.Start]; ok &&
			orig.GetEnd() == area.End && vma.KindOf(orig.GetStatus()) == area.Kind {
			entries = append(entries, orig)
			continue
		}
		entries = append(entries, entryOf(area))
	}
	stored := proto.Clone(m.entry).(*mm.MmEntry)
	stored.Vmas = entries
	if err := d.writeAll(mmImg(pid), mmMagic, stored); err != nil {
		return err
	}
	d.slog().Debug("stored memory mappings",
		slog.Int("pid", pid),
		slog.Int("areas", len(entries)))
	return nil
}

// OpenMapped opens the file mapped by the passed file-backed area. Writable
// shared mappings get the file opened read-write, all other mappings read-only.
func (d *Dir) OpenMapped(area vma.Area) (*os.File, error) {
	name, err := d.mappedName(uint32(area.Shmid))
	if err != nil {
		return nil, err
	}
	path, err := securejoin.SecureJoin(d.root, name)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve mapped file %q: %w", name, err)
	}
	flags := unix.O_RDONLY
	if area.Flags&unix.MAP_SHARED != 0 && area.Prot&unix.PROT_WRITE != 0 {
		flags = unix.O_RDWR
	}
	f, err := os.OpenFile(path, flags|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open mapped file: %w", err)
	}
	return f, nil
}
