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

package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrABI signals a failed pseudo_mm control device request.
	ErrABI = errors.New("pseudo_mm request failed")
	// ErrUnaligned signals an address, size or offset that is not a multiple
	// of the page size.
	ErrUnaligned = errors.New("not page aligned")
	// ErrAlreadyRegistered signals an attempt to register a second pool.
	ErrAlreadyRegistered = errors.New("pool already registered")
)

// ioctlFn issues a single ioctl request with a pointer argument.
type ioctlFn func(fd int, req uint, arg unsafe.Pointer) error

func sysIoctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Client issues requests to a pseudo_mm control device.
//
// # Important
//
// Client cannot(!) be used concurrently.
type Client struct {
	fd         int
	pagesize   uint64
	registered bool
	ioctl      ioctlFn
	log        *slog.Logger
}

// New returns a new Client for the already open pseudo_mm control device file
// descriptor. The Client does not take ownership of the fd.
func New(fd int, logger *slog.Logger) *Client {
	return &Client{
		fd:       fd,
		pagesize: uint64(os.Getpagesize()),
		ioctl:    sysIoctl,
		log:      logger,
	}
}

func (c *Client) slog() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.Default()
}

// do the passed request with its argument, wrapping any error as an ABI error.
func (c *Client) do(name string, req uint, arg unsafe.Pointer) error {
	if err := c.ioctl(c.fd, req, arg); err != nil {
		c.slog().Error("pseudo_mm request failed",
			slog.String("request", name),
			slog.String("err", err.Error()))
		return fmt.Errorf("%w: %s: %w", ErrABI, name, err)
	}
	return nil
}

func (c *Client) aligned(v uint64) bool {
	return v&(c.pagesize-1) == 0
}

// Register the pool referenced by the passed file descriptor with the kernel
// module. A Client registers at most one pool.
func (c *Client) Register(poolfd int) error {
	if c.registered {
		return ErrAlreadyRegistered
	}
	fd := int32(poolfd)
	if err := c.do("register", PSEUDO_MM_IOC_REGISTER, unsafe.Pointer(&fd)); err != nil {
		return err
	}
	c.registered = true
	c.slog().Debug("registered pool with pseudo_mm", slog.Int("fd", poolfd))
	return nil
}

// Create a new pseudo address space, returning its id.
func (c *Client) Create() (int, error) {
	var id int32
	if err := c.do("create", PSEUDO_MM_IOC_CREATE, unsafe.Pointer(&id)); err != nil {
		return -1, err
	}
	return int(id), nil
}

// Delete the pseudo address space with the specified id.
func (c *Client) Delete(id int) error {
	id32 := int32(id)
	return c.do("delete", PSEUDO_MM_IOC_DELETE, unsafe.Pointer(&id32))
}

// DeleteAll deletes all pseudo address spaces.
func (c *Client) DeleteAll() error {
	return c.Delete(AllPseudoMMs)
}

// AddMap records a mapping inside the pseudo address space with the specified
// id, in the same way as mmap(2) would create it: start, length and offset
// must be page aligned. Use fd -1 for anonymous mappings.
func (c *Client) AddMap(id int, start, length uint64, prot, flags int, fd int, offset int64) error {
	if !c.aligned(start) || !c.aligned(length) || !c.aligned(uint64(offset)) {
		return fmt.Errorf("add map %#x+%#x offset %#x: %w", start, length, offset, ErrUnaligned)
	}
	param := addMapParam{
		id:     int32(id),
		start:  start,
		end:    start + length,
		prot:   uint64(prot),
		flags:  uint64(flags),
		fd:     int32(fd),
		offset: offset,
	}
	return c.do("add map", PSEUDO_MM_IOC_ADD_MAP, unsafe.Pointer(&param))
}

// SetupPT sets up the page table entries for the virtual range [start,
// start+length) inside the pseudo address space with the specified id,
// pointing to the pages starting at pgoff inside the registered pool.
func (c *Client) SetupPT(id int, start, length uint64, pgoff uint64) error {
	if !c.aligned(start) || !c.aligned(length) {
		return fmt.Errorf("setup page table %#x+%#x: %w", start, length, ErrUnaligned)
	}
	param := setupPTParam{
		id:    int32(id),
		start: start,
		size:  length,
		pgoff: pgoff,
	}
	return c.do("setup page table", PSEUDO_MM_IOC_SETUP_PT, unsafe.Pointer(&param))
}

// Attach the pseudo address space with the specified id to the process with
// the specified PID.
func (c *Client) Attach(id int, pid int) error {
	param := attachParam{
		pid: int32(pid),
		id:  int32(id),
	}
	return c.do("attach", PSEUDO_MM_IOC_ATTACH, unsafe.Pointer(&param))
}

// BringBack demotes the pooled range [start, start+length) of the pseudo
// address space with the specified id back into local memory.
func (c *Client) BringBack(id int, start, length uint64) error {
	if !c.aligned(start) || !c.aligned(length) {
		return fmt.Errorf("bring back %#x+%#x: %w", start, length, ErrUnaligned)
	}
	param := bringBackParam{
		id:    int32(id),
		start: start,
		size:  length,
	}
	return c.do("bring back", PSEUDO_MM_IOC_BRING_BACK, unsafe.Pointer(&param))
}
