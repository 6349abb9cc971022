/*
Command poolserver serves a remote memory pool on a unix domain socket, placing
page contents handed over by converters into a backing file.

	poolserver --socket /run/pool.sock --backing /dev/shm/pool

When no socket path is given, poolserver expects an already connected stream
unix domain socket as fd 3 and serves only this single connection.
*/
package main
