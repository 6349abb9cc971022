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
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/fdooze"
	. "github.com/thediveo/success"
)

var _ = Describe("unix domain sockets (UDS's)", func() {

	BeforeEach(func() {
		goodfds := Filedescriptors()
		DeferCleanup(func() {
			Eventually(Filedescriptors).Within(2 * time.Second).ProbeEvery(100 * time.Millisecond).
				ShouldNot(HaveLeakedFds(goodfds))
		})
	})

	When("transforming a file descriptor into a Conn", func() {

		It("returns a Conn without leaking fds", func() {
			fdpair := Successful(unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0))
			Expect(unix.Close(fdpair[1])).To(Succeed())
			conn := Successful(NewUnixConn(fdpair[0], "pool-client"))
			Expect(conn.Close()).To(Succeed())
		})

		It("returns an error when the passed fd is bonkers", func() {
			Expect(NewUnixConn(-1, "nada")).Error().To(MatchError(
				ContainSubstring("not a file descriptor")))

			udpsockfd := Successful(unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0))
			Expect(NewUnixConn(udpsockfd, "nada")).Error().To(MatchError(
				ContainSubstring("not a unix domain socket")))
		})

	})

	When("dialing and listening", func() {

		It("connects to a listening socket path", func() {
			path := filepath.Join(GinkgoT().TempDir(), "pool.sock")
			l := Successful(Listen(path))
			defer func() { _ = l.Close() }()

			accepted := make(chan *Conn)
			go func() {
				defer GinkgoRecover()
				defer close(accepted)
				conn, err := l.Accept()
				Expect(err).NotTo(HaveOccurred())
				accepted <- conn
			}()

			client := Successful(Dial(path))
			defer func() { _ = client.Close() }()
			var server *Conn
			Eventually(accepted).Within(2 * time.Second).Should(Receive(&server))
			defer func() { _ = server.Close() }()

			Expect(client.SendWithFds([]byte("ping"))).To(Equal(4))
			buff := make([]byte, 16)
			n, fds := Successful2R(server.ReceiveWithFds(buff, 1))
			Expect(fds).To(BeEmpty())
			Expect(string(buff[:n])).To(Equal("ping"))
		})

		It("fails dialing a non-existing socket", func() {
			Expect(Dial(filepath.Join(GinkgoT().TempDir(), "nowhere.sock"))).Error().
				To(HaveOccurred())
		})

	})

	When("transferring open file descriptors", func() {

		It("succeeds", func() {
			client, server := Successful2R(NewPair())
			defer func() {
				_ = client.Close()
				_ = server.Close()
			}()

			canarypath := filepath.Join(GinkgoT().TempDir(), "pages-1.img")
			Expect(os.WriteFile(canarypath, []byte("tweety pie"), 0o600)).To(Succeed())
			canaryfd := Successful(unix.Open(canarypath, unix.O_RDONLY, 0))
			defer func() { _ = unix.Close(canaryfd) }()
			go func() {
				defer GinkgoRecover()
				Expect(client.SendWithFds([]byte{42}, canaryfd)).To(Equal(1))
			}()

			Expect(server.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
			buff := make([]byte, 1)
			n, fds := Successful2R(server.ReceiveWithFds(buff, 4))
			Expect(n).To(Equal(1))
			Expect(buff[0]).To(Equal(byte(42)))
			Expect(fds).To(HaveLen(1))
			received := os.NewFile(uintptr(fds[0]), "received")
			defer func() { _ = received.Close() }()
			Expect(fds[0]).NotTo(Equal(canaryfd))
			Expect(io.ReadAll(received)).To(Equal([]byte("tweety pie")))
		})

		It("times out when nothing gets sent", func() {
			client, server := Successful2R(NewPair())
			defer func() {
				_ = client.Close()
				_ = server.Close()
			}()

			Expect(server.SetReadDeadline(time.Now().Add(500 * time.Millisecond))).To(Succeed())
			Expect(server.ReceiveWithFds(make([]byte, 1), 1)).Error().To(MatchError(
				ContainSubstring("i/o timeout")))
		})

		It("skips other control messages", func() {
			client, server := Successful2R(NewPair())
			defer func() {
				_ = client.Close()
				_ = server.Close()
			}()

			// SCM_CREDENTIALS are only received when enabled on the receiving
			// socket, so we need to dance the SyscallConn/Control dance.
			Expect(Successful(server.SyscallConn()).Control(func(fd uintptr) {
				Expect(unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PASSCRED, 1)).To(Succeed())
			})).To(Succeed())
			go func() {
				defer GinkgoRecover()
				oob := unix.UnixCredentials(&unix.Ucred{
					Pid: int32(os.Getpid()),
					Uid: uint32(os.Getuid()),
					Gid: uint32(os.Getgid()),
				})
				_, noob, err := client.WriteMsgUnix([]byte{0}, oob, nil)
				Expect(noob).To(Equal(len(oob)))
				Expect(err).NotTo(HaveOccurred())
			}()

			_, fds, err := server.ReceiveWithFds(make([]byte, 1), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(fds).To(BeNil())
		})

	})

})
