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

package nsswitch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// DetachRootTask detaches from the previously seized root task with the
// specified PID: it interrupts the task, waits for it to stop, and then
// detaches from it. Tasks that weren't seized, have gone, or became zombies
// are left alone.
//
// As ptrace(2) operates per thread, DetachRootTask must be called on the same
// OS-level thread that seized the task.
func DetachRootTask(pid int, seized bool, logger *slog.Logger) error {
	if !seized {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	alive, err := taskAlive(pid)
	if err != nil {
		return err
	}
	if !alive {
		logger.Info("root task already gone", slog.Int("pid", pid))
		return nil
	}
	if err := unix.PtraceInterrupt(pid); err != nil {
		return fmt.Errorf("cannot interrupt root task %d: %w", pid, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, unix.WALL, nil); err != nil {
		return fmt.Errorf("cannot wait for root task %d: %w", pid, err)
	}
	if err := unix.PtraceDetach(pid); err != nil {
		return fmt.Errorf("cannot detach from root task %d: %w", pid, err)
	}
	logger.Info("detached from root task", slog.Int("pid", pid))
	return nil
}

// taskAlive returns true if the task with the specified PID exists and isn't
// a zombie.
func taskAlive(pid int) (bool, error) {
	fs, err := procfs.NewFS("/proc")
	if err != nil {
		return false, fmt.Errorf("cannot access procfs: %w", err)
	}
	proc, err := fs.Proc(pid)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("cannot inspect task %d: %w", pid, err)
	}
	stat, err := proc.Stat()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("cannot inspect task %d: %w", pid, err)
	}
	return stat.State != "Z", nil
}
