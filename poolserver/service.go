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

package poolserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/thediveo/pseudomm/uds"
	"github.com/thediveo/pseudomm/wire"
	"golang.org/x/sys/unix"
)

// pollInterval is how often a serving loop checks its context while waiting
// for the next command.
const pollInterval = 2 * time.Second

// Serve services commands on the passed *uds.Conn until the client
// disconnects or the passed context gets cancelled, using the passed store to
// place page contents into the pool.
func Serve(ctx context.Context, conn *uds.Conn, store Store) {
	id := petname.Generate(2, "-")
	log := store.Slog().With(slog.String("pool-server-id", id))
	log.Info("pool serving loop started")
	defer log.Info("pool serving loop terminated")

	enc := wire.NewEncoder()
	dec := wire.NewDecoder()

	for {
		select {
		case <-ctx.Done():
			log.Info("context cancelled")
			return
		default:
		}
		// Read in the next command; we don't expect any fds with it. The read
		// deadline allows us to check our context from time to time.
		if err := conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			log.Error("cannot set deadline", slog.String("err", err.Error()))
			return
		}
		n, fds, err := conn.ReceiveWithFds(dec.Buffer(wire.CommandSize), 0)
		closeFds(fds)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if n == 0 && (errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)) {
				log.Info("client disconnected")
				return
			}
			log.Error("cannot receive command", slog.String("err", err.Error()))
			return
		}
		if n == 0 {
			log.Info("client disconnected")
			return
		}
		command, err := dec.Command(n)
		if err != nil {
			log.Error("cannot decode command", slog.String("err", err.Error()))
			return
		}
		if command != wire.MapCommand {
			log.Error("unknown command", slog.String("command", command.String()))
			return
		}
		// The page offset and page content fd follow the command immediately,
		// so there is no need to poll anymore.
		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			log.Error("cannot clear deadline", slog.String("err", err.Error()))
			return
		}
		n, fds, err = conn.ReceiveWithFds(dec.Buffer(wire.PageOffsetSize), 1)
		if err != nil {
			closeFds(fds)
			log.Error("cannot receive page offset", slog.String("err", err.Error()))
			return
		}
		pgoff, err := dec.PageOffset(n)
		if err != nil || len(fds) != 1 {
			closeFds(fds)
			log.Error("invalid map command",
				slog.Int("fds", len(fds)),
				slog.Any("err", err))
			return
		}
		ack := mapContent(store, fds[0], pgoff, log)
		if _, err := conn.Write(enc.Ack(ack)); err != nil {
			log.Error("cannot send acknowledgement", slog.String("err", err.Error()))
			return
		}
	}
}

// mapContent stores the page content referenced by the passed fd, taking
// ownership of the fd, and returns the acknowledgement to send back.
func mapContent(store Store, contentfd int, pgoff uint64, log *slog.Logger) wire.Ack {
	content := os.NewFile(uintptr(contentfd), "pages")
	defer func() { _ = content.Close() }()
	if err := store.Store(content, pgoff); err != nil {
		log.Error("cannot store page content",
			slog.Uint64("pgoff", pgoff),
			slog.String("err", err.Error()))
		var errno unix.Errno
		if errors.As(err, &errno) {
			return wire.Ack(errno)
		}
		return wire.Ack(unix.EIO)
	}
	log.Info("stored page content", slog.Uint64("pgoff", pgoff))
	return wire.AckOK
}

func closeFds(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}

// ListenAndServe listens on the specified unix domain socket path and serves
// each accepted connection on its own go routine until the passed context gets
// cancelled.
func ListenAndServe(ctx context.Context, path string, store Store) error {
	l, err := uds.Listen(path)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()
	store.Slog().Info("pool server listening", slog.String("path", path))
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer func() { _ = conn.Close() }()
			Serve(ctx, conn, store)
		}()
	}
}
