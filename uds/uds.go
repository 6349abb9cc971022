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

package uds

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Conn represents a (stream) unix domain socket connection to or from a pool
// server that can send and receive open file descriptors. It wraps
// [*net.UnixConn]. Use [Dial] to connect to a pool server listening on a
// socket path, [Listener.Accept] on the server side, and [NewPair] to get a
// directly connected pair (such as in tests).
type Conn struct {
	*net.UnixConn
}

// Dial connects to the (stream) unix domain socket at the specified path.
func Dial(path string) (*Conn, error) {
	unixconn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	return &Conn{UnixConn: unixconn}, nil
}

// Listener accepts [Conn] connections on a (stream) unix domain socket path.
type Listener struct {
	*net.UnixListener
}

// Listen on the specified socket path. The socket file is removed when the
// listener gets closed.
func Listen(path string) (*Listener, error) {
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	l.SetUnlinkOnClose(true)
	return &Listener{UnixListener: l}, nil
}

// Accept the next incoming connection.
func (l *Listener) Accept() (*Conn, error) {
	unixconn, err := l.AcceptUnix()
	if err != nil {
		return nil, err
	}
	return &Conn{UnixConn: unixconn}, nil
}

// NewPair returns a pair of peer-to-peer connected (stream) unix domain
// sockets that can transfer open file descriptors across process boundaries.
func NewPair() (client, server *Conn, err error) {
	fdpair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, err
	}
	client, err = NewUnixConn(fdpair[0], "pool-client")
	if err != nil {
		// fdpair[0] is always closed by now, so only fdpair[1] is left.
		_ = unix.Close(fdpair[1])
		return nil, nil, err
	}
	server, err = NewUnixConn(fdpair[1], "pool-server")
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, server, nil
}

// SendWithFds sends the passed data as well as the passed file descriptors over
// the (stream) UDS connection in a single control message (ancillary data).
// Passing no fds sends the data without any control message.
func (c *Conn) SendWithFds(b []byte, fds ...int) (n int, err error) {
	var oob []byte
	if len(fds) > 0 {
		// unix.UnixRights returns a single control message consisting of the
		// header as well as the fd payload.
		oob = unix.UnixRights(fds...)
	}
	n, _, err = c.WriteMsgUnix(b, oob, nil)
	return n, err
}

// ReceiveWithFds receives data into b, together with at most maxfds file
// descriptors passed in a single control message (ancillary data). Receiving
// no fds at all is not an error.
func (c *Conn) ReceiveWithFds(b []byte, maxfds int) (n int, fds []int, err error) {
	// unix.CmsgSpace gives us the correct amount of control message space for
	// the fd payload (int32's) plus the header overhead.
	oob := make([]byte, unix.CmsgSpace(maxfds*4))
	n, noob, _, _, err := c.ReadMsgUnix(b, oob)
	if err != nil {
		return 0, nil, err
	}
	cms, err := unix.ParseSocketControlMessage(oob[:noob])
	if err != nil {
		return 0, nil, err
	}
	for _, cm := range cms {
		if cm.Header.Level != unix.SOL_SOCKET || cm.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&cm)
		if err != nil {
			return 0, nil, err
		}
		return n, fds, nil
	}
	return n, nil, nil
}

// NewUnixConn returns a *Conn for the passed unix domain socket fd; otherwise,
// it returns an error.
//
// Important: NewUnixConn always takes ownership of the passed file descriptor
// and will close it, even in case of error.
func NewUnixConn(udsfd int, nickname string) (*Conn, error) {
	f := os.NewFile(uintptr(udsfd), nickname)
	if f == nil {
		return nil, errors.New("not a file descriptor")
	}
	defer func() { _ = f.Close() }()
	netconn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	unixconn, ok := netconn.(*net.UnixConn)
	if !ok {
		_ = netconn.Close()
		return nil, errors.New("not a unix domain socket")
	}
	return &Conn{UnixConn: unixconn}, nil
}
