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

	core "github.com/checkpoint-restore/go-criu/v7/crit/images/criu-core"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/inventory"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/pstree"
	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/proto"
)

// Image versions accepted in the inventory.
const (
	imagesV1  = 1
	imagesV11 = 2
)

// Image names.
const (
	inventoryImg = "inventory.img"
	pstreeImg    = "pstree.img"
	filesImg     = "files.img"
)

// Dir is a CRIU image directory.
type Dir struct {
	dir   *os.File
	root  string
	log   *slog.Logger
	files map[uint32]string // regular file paths by id
}

// Option configures a [Dir].
type Option func(*Dir)

// WithRoot sets the root directory below which the files of file-backed
// mappings get resolved; it defaults to "/".
func WithRoot(root string) Option {
	return func(d *Dir) { d.root = root }
}

// WithLogger sets the logger to use; otherwise, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dir) { d.log = logger }
}

// Open the CRIU image directory at the specified path.
func Open(path string, opts ...Option) (*Dir, error) {
	dir, err := os.OpenFile(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open image directory: %w", err)
	}
	d := &Dir{dir: dir, root: "/"}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close the image directory.
func (d *Dir) Close() error {
	return d.dir.Close()
}

func (d *Dir) slog() *slog.Logger {
	if d.log != nil {
		return d.log
	}
	return slog.Default()
}

// open the named image for reading, not allowing the name to escape the image
// directory.
func (d *Dir) open(name string) (*os.File, error) {
	handle, err := securejoin.OpenatInRoot(d.dir, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = handle.Close() }()
	return securejoin.Reopen(handle, unix.O_RDONLY|unix.O_CLOEXEC)
}

// exists returns true if the named image exists.
func (d *Dir) exists(name string) bool {
	var stat unix.Stat_t
	return unix.Fstatat(int(d.dir.Fd()), name, &stat, unix.AT_SYMLINK_NOFOLLOW) == nil
}

// create atomically (re)writes the named image, with write producing the
// contents.
func (d *Dir) create(name string, write func(f *os.File) error) error {
	dirfd := int(d.dir.Fd())
	tmpname := "." + name + ".tmp"
	fd, err := unix.Openat(dirfd, tmpname,
		unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0o600)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", name, err)
	}
	f := os.NewFile(uintptr(fd), tmpname)
	err = write(f)
	if closeerr := f.Close(); err == nil {
		err = closeerr
	}
	if err == nil {
		err = unix.Renameat(dirfd, tmpname, dirfd, name)
	}
	if err != nil {
		_ = unix.Unlinkat(dirfd, tmpname, 0)
		return fmt.Errorf("cannot write %s: %w", name, err)
	}
	return nil
}

// readAll returns all entries of the named image.
func readAll[T proto.Message](d *Dir, name string, magic string, entryType T) ([]T, error) {
	f, err := d.open(name)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()
	return decodeAll(f, name, magic, entryType)
}

// writeAll (re)writes the named image with the passed entries.
func (d *Dir) writeAll(name string, magic string, entries ...proto.Message) error {
	return d.create(name, func(f *os.File) error {
		return encode(f, magic, entries...)
	})
}

// readOne returns the single entry of the named image.
func readOne[T proto.Message](d *Dir, name string, magic string, entryType T) (T, error) {
	var zero T
	entries, err := readAll(d, name, magic, entryType)
	if err != nil {
		return zero, err
	}
	if len(entries) != 1 {
		return zero, fmt.Errorf("%w: %s: expected a single entry, got %d",
			ErrFormat, name, len(entries))
	}
	return entries[0], nil
}

// CheckInventory checks that the image directory contains a supported
// inventory, returning the id of the root task's mount namespace.
func (d *Dir) CheckInventory() (uint32, error) {
	inv, err := readOne(d, inventoryImg, inventoryMagic, &inventory.InventoryEntry{})
	if err != nil {
		return 0, err
	}
	switch version := inv.GetImgVersion(); version {
	case imagesV1, imagesV11:
	default:
		return 0, fmt.Errorf("%w: %s: unsupported image version %d", ErrFormat, inventoryImg, version)
	}
	d.slog().Debug("checked inventory", slog.Uint64("version", uint64(inv.GetImgVersion())))
	return inv.GetRootIds().GetMntNsId(), nil
}

// Task describes a checkpointed task from the process tree.
type Task struct {
	PID     int
	PPID    int
	PGID    int
	SID     int
	Threads []int
}

// Tasks returns the checkpointed tasks in process tree order, that is, the
// root task first.
func (d *Dir) Tasks() ([]Task, error) {
	entries, err := readAll(d, pstreeImg, pstreeMagic, &pstree.PstreeEntry{})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s: no tasks", ErrFormat, pstreeImg)
	}
	tasks := make([]Task, 0, len(entries))
	for _, entry := range entries {
		task := Task{
			PID:  int(entry.GetPid()),
			PPID: int(entry.GetPpid()),
			PGID: int(entry.GetPgid()),
			SID:  int(entry.GetSid()),
		}
		for _, tid := range entry.GetThreads() {
			task.Threads = append(task.Threads, int(tid))
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// MountNamespaces returns the distinct mount namespace ids of the passed tasks.
// Tasks without an ids image are skipped.
func (d *Dir) MountNamespaces(tasks []Task) ([]uint32, error) {
	var mntnsids []uint32
	seen := map[uint32]struct{}{}
	for _, task := range tasks {
		name := fmt.Sprintf("ids-%d.img", task.PID)
		if !d.exists(name) {
			continue
		}
		ids, err := readOne(d, name, idsMagic, &core.TaskKobjIdsEntry{})
		if err != nil {
			return nil, err
		}
		if ids.MntNsId == nil {
			continue
		}
		if _, ok := seen[ids.GetMntNsId()]; ok {
			continue
		}
		seen[ids.GetMntNsId()] = struct{}{}
		mntnsids = append(mntnsids, ids.GetMntNsId())
	}
	return mntnsids, nil
}
