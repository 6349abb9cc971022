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
	"runtime"

	"github.com/thediveo/pseudomm/uds"
	"github.com/thediveo/pseudomm/wire"
	"golang.org/x/sys/unix"
)

// Remote is a pool backend handing page content over to a remote pool server
// connected via a stream unix domain socket.
//
// Please note that Remote waits indefinitely for the pool server to
// acknowledge a commit.
type Remote struct {
	conn *uds.Conn
	enc  *wire.Encoder
	dec  *wire.Decoder
}

var _ Backend = (*Remote)(nil)

// NewRemote returns a remote pool backend using the passed connection to a
// pool server. The backend takes ownership of the connection.
func NewRemote(conn *uds.Conn) *Remote {
	return &Remote{
		conn: conn,
		enc:  wire.NewEncoder(),
		dec:  wire.NewDecoder(),
	}
}

// DialRemote connects to the pool server listening on the specified unix
// domain socket path, returning a remote pool backend.
func DialRemote(path string) (*Remote, error) {
	conn, err := uds.Dial(path)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to pool server: %w", err)
	}
	return NewRemote(conn), nil
}

// Kind returns "remote".
func (r *Remote) Kind() string { return "remote" }

// Close the connection to the pool server.
func (r *Remote) Close() error { return r.conn.Close() }

func (r *Remote) store(content *os.File, pgoff uint64, size int64) error {
	if _, err := r.conn.Write(r.enc.Command(wire.MapCommand)); err != nil {
		return fmt.Errorf("%w: cannot send %s command: %w", ErrProtocol, wire.MapCommand, err)
	}
	_, err := r.conn.SendWithFds(r.enc.PageOffset(pgoff), int(content.Fd()))
	runtime.KeepAlive(content)
	if err != nil {
		return fmt.Errorf("%w: cannot send page offset and content: %w", ErrProtocol, err)
	}
	n, err := io.ReadFull(r.conn, r.dec.Buffer(wire.AckSize))
	if err != nil {
		return fmt.Errorf("%w: cannot receive acknowledgement: %w", ErrProtocol, err)
	}
	ack, err := r.dec.Ack(n)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if ack != wire.AckOK {
		return fmt.Errorf("%w: pool server rejected %d pages at page offset %d: %w",
			ErrProtocol, size/int64(os.Getpagesize()), pgoff, unix.Errno(ack))
	}
	return nil
}
