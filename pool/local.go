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
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Local is a pool backend directly mapping a (DAX/PMEM) pool device into the
// converter's address space.
type Local struct {
	device   *os.File
	pagesize int64
}

var _ Backend = (*Local)(nil)

// NewLocal returns a local pool backend for the passed, read-write opened
// pool device. The backend takes ownership of the device file.
func NewLocal(device *os.File) *Local {
	return &Local{
		device:   device,
		pagesize: int64(os.Getpagesize()),
	}
}

// OpenLocal opens the pool device at the specified path, returning a local
// pool backend for it.
func OpenLocal(path string) (*Local, error) {
	device, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open pool device: %w", err)
	}
	return NewLocal(device), nil
}

// Kind returns "local".
func (l *Local) Kind() string { return "local" }

// Close the pool device.
func (l *Local) Close() error { return l.device.Close() }

func (l *Local) store(content *os.File, pgoff uint64, size int64) error {
	window, err := unix.Mmap(int(l.device.Fd()), int64(pgoff)*l.pagesize, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("cannot map pool device window at page offset %d: %w", pgoff, err)
	}
	_, copyerr := io.ReadFull(io.NewSectionReader(content, 0, size), window)
	if err := unix.Munmap(window); err != nil {
		return fmt.Errorf("cannot unmap pool device window at page offset %d: %w", pgoff, err)
	}
	if copyerr != nil {
		return fmt.Errorf("cannot copy page content into pool device: %w", copyerr)
	}
	return nil
}
