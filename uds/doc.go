/*
Package uds connects converters to remote memory pool servers using (stream)
unix domain sockets, transferring open file descriptors of page content images
alongside the in-band protocol data.

Using stream unix domain sockets has the benefit of being able to detect when
the “other” side has disconnected.

# Trivia

“[UDS]” is short for “unix domain socket”.

[UDS]: https://en.wikipedia.org/wiki/Unix_domain_socket
*/
package uds
