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
	"log/slog"
	"os"

	"github.com/thediveo/pseudomm/image"
	"github.com/thediveo/pseudomm/pool"
	"github.com/thediveo/pseudomm/vma"
)

var (
	// ErrConfig signals an unusable converter configuration.
	ErrConfig = errors.New("invalid converter configuration")
	// ErrUnsupported signals checkpoint contents that cannot be converted.
	ErrUnsupported = errors.New("unsupported checkpoint contents")
)

// Config configures a [Converter]. Exactly one of Local and Remote must be
// set.
type Config struct {
	Images     Images          // checkpoint images to convert
	Driver     Driver          // pseudo_mm driver
	Local      *pool.Local     // local memory pool backend
	Remote     *pool.Remote    // remote memory pool backend
	PageOffset uint64          // page offset into the pool of the first commit
	Namespaces Namespaces      // optional container namespaces to switch into
	Sharing    SharingDetector // optional copy-on-write sharing detection
	Logger     *slog.Logger    // optional logger; defaults to slog.Default()
}

// Converter converts checkpointed containers into pseudo address spaces.
//
// # Important
//
// Converter cannot(!) be used concurrently.
type Converter struct {
	images     Images
	driver     Driver
	pool       *pool.Pool
	namespaces Namespaces
	sharing    SharingDetector
	registered bool
	pagesize   uint64
	log        *slog.Logger
}

// New returns a new Converter for the passed configuration. The Converter
// takes ownership of the configured pool backend.
func New(cfg Config) (*Converter, error) {
	if cfg.Images == nil {
		return nil, fmt.Errorf("%w: no images", ErrConfig)
	}
	if cfg.Driver == nil {
		return nil, fmt.Errorf("%w: no pseudo_mm driver", ErrConfig)
	}
	var backend pool.Backend
	switch {
	case cfg.Local != nil && cfg.Remote != nil:
		return nil, fmt.Errorf("%w: both local and remote pool configured", ErrConfig)
	case cfg.Local != nil:
		backend = cfg.Local
	case cfg.Remote != nil:
		backend = cfg.Remote
	default:
		return nil, fmt.Errorf("%w: no pool configured", ErrConfig)
	}
	c := &Converter{
		images:     cfg.Images,
		driver:     cfg.Driver,
		namespaces: cfg.Namespaces,
		sharing:    cfg.Sharing,
		pagesize:   uint64(os.Getpagesize()),
		log:        cfg.Logger,
	}
	c.pool = pool.NewAt(backend, cfg.PageOffset, c.slog())
	return c, nil
}

func (c *Converter) slog() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.Default()
}

// Committed returns the number of pages committed to the pool so far.
func (c *Converter) Committed() uint64 { return c.pool.Committed() }

// Close the converter's pool.
func (c *Converter) Close() error { return c.pool.Close() }

// register the pool with the pseudo_mm driver, unless already done or the
// pool backend doesn't need registration.
func (c *Converter) register() error {
	if c.registered {
		return nil
	}
	fd, ok := c.pool.RegistrationFd()
	if !ok {
		return nil
	}
	if err := c.driver.Register(fd); err != nil {
		return fmt.Errorf("cannot register %s pool: %w", c.pool.Kind(), err)
	}
	c.registered = true
	return nil
}

// Run converts the checkpointed container.
func (c *Converter) Run() error {
	if err := c.register(); err != nil {
		return err
	}
	mntnsid, err := c.images.CheckInventory()
	if err != nil {
		return err
	}
	tasks, err := c.images.Tasks()
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("%w: no tasks", image.ErrFormat)
	}
	if err := c.images.LoadFiles(); err != nil {
		return err
	}
	r := &run{
		Converter: c,
		root:      tasks[0],
		tasks:     tasks,
	}
	log := c.slog().With(slog.Int("root-pid", r.root.PID))
	log.Info("converting container",
		slog.Int("tasks", len(tasks)),
		slog.String("pool", c.pool.Kind()))

	convert := r.convert
	if c.namespaces != nil {
		needed, err := c.namespaces.Needed()
		if err != nil {
			return err
		}
		if needed {
			mntnss, err := c.images.MountNamespaces(tasks)
			if err != nil {
				return err
			}
			log.Info("switching into container namespaces",
				slog.Uint64("root-mntns-id", uint64(mntnsid)),
				slog.Int("mntnss", len(mntnss)))
			convert = func() error { return c.namespaces.Do(len(mntnss), r.convert) }
		}
	}
	if err := convert(); err != nil {
		return err
	}
	log.Info("converted container", slog.Uint64("pages", c.pool.Committed()))
	return nil
}

// run is a single container conversion.
type run struct {
	*Converter
	root  image.Task
	tasks []image.Task
	mms   []MM
	areas []TaskAreas
}

// convert all tasks of the container and finally write the committed pages
// marker.
func (r *run) convert() error {
	if err := r.prepare(); err != nil {
		return err
	}
	for idx, task := range r.tasks {
		if err := r.convertTask(task, r.mms[idx], r.areas[idx].Areas); err != nil {
			return err
		}
	}
	return r.images.WriteCommittedPages(r.pool.Committed())
}

// prepare loads and validates the memory areas of all tasks and then runs the
// sharing detection over all tasks.
func (r *run) prepare() error {
	r.mms = make([]MM, 0, len(r.tasks))
	r.areas = make([]TaskAreas, 0, len(r.tasks))
	for _, task := range r.tasks {
		m, err := r.images.LoadMM(task.PID)
		if err != nil {
			return r.taskError(&taskContext{pid: task.PID}, err)
		}
		areas := m.Areas()
		if err := vma.Validate(areas); err != nil {
			return r.taskError(&taskContext{pid: task.PID}, err)
		}
		if err := supported(areas); err != nil {
			return r.taskError(&taskContext{pid: task.PID}, err)
		}
		r.mms = append(r.mms, m)
		r.areas = append(r.areas, TaskAreas{PID: task.PID, Areas: areas})
	}
	if r.sharing == nil {
		return nil
	}
	return r.sharing.DetectSharing(r.areas)
}

func (r *run) taskError(tc *taskContext, err error) error {
	return &Error{
		PID:     tc.pid,
		ImageID: tc.pagesID,
		Backend: r.pool.Kind(),
		State:   tc.state,
		Err:     err,
	}
}
