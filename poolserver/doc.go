/*
Package poolserver implements a reference remote memory pool server that
places page contents handed over by converters into a backing file.

A converter connects over a stream unix domain socket and then issues “map”
commands, each passing the file descriptor of a page content image together
with the page offset into the pool where the content is to be placed. The
server copies the content into its backing and acknowledges each command; see
package wire for the protocol details.
*/
package poolserver
