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

	"github.com/thediveo/pseudomm/inherit"
	"golang.org/x/sys/unix"
)

// ErrNamespace signals a failure to look up or join a namespace.
var ErrNamespace = errors.New("namespace switch failed")

// Lookuper looks up inherited file descriptors by key.
type Lookuper interface {
	Lookup(key string) (int, error)
}

// joinOrder lists the namespace types in the order they get joined.
var joinOrder = []int{
	unix.CLONE_NEWNET,
	unix.CLONE_NEWNS,
	unix.CLONE_NEWIPC,
	unix.CLONE_NEWUTS,
}

// Join attaches the calling OS-level thread to the inherited network, mount,
// IPC, and UTS namespaces in this order, skipping any namespace that hasn't
// been inherited. Join returns the number of namespaces joined.
//
// The caller's go routine must be locked to its OS-level thread. For joining
// a mount namespace, the thread must additionally have unshared its
// filesystem attributes (CLONE_FS).
func Join(store Lookuper, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	joined := 0
	for _, typ := range joinOrder {
		name := Name(typ)
		nsfd, err := store.Lookup(inherit.NamespaceKey(name))
		if err != nil {
			if errors.Is(err, inherit.ErrNotInherited) {
				continue
			}
			return joined, fmt.Errorf("%w: %w", ErrNamespace, err)
		}
		actualtyp, err := Type(nsfd)
		if err != nil {
			return joined, fmt.Errorf("%w: %s: %w", ErrNamespace, name, err)
		}
		if actualtyp != typ {
			return joined, fmt.Errorf("%w: inherited %s namespace reference is a %s namespace",
				ErrNamespace, name, Name(actualtyp))
		}
		ino, err := Ino(nsfd)
		if err != nil {
			return joined, fmt.Errorf("%w: %w", ErrNamespace, err)
		}
		// Skip joining the same namespace again, as this might fail for
		// lack of capabilities.
		if current, err := CurrentIno(typ); err == nil && current == ino {
			continue
		}
		if err := unix.Setns(nsfd, typ); err != nil {
			return joined, fmt.Errorf("%w: cannot join %s namespace: %w", ErrNamespace, name, err)
		}
		logger.Debug("joined namespace",
			slog.String("type", name),
			slog.Uint64("ino", ino))
		joined++
	}
	return joined, nil
}
