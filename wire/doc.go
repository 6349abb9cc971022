/*
Package wire encodes and decodes the messages exchanged between a converter and
a remote memory pool server.

The protocol is a fixed-size binary protocol on top of a connected stream unix
domain socket:

  - client → server: 4 byte little-endian command code ([MapCommand]).
  - client → server: 8 byte little-endian page offset into the pool, with the
    file descriptor of the page content image attached as SCM_RIGHTS
    ancillary data.
  - server → client: 4 byte little-endian acknowledgement, zero for success,
    otherwise an errno value.
*/
package wire
