/*
Package image reads and writes the CRIU checkpoint images a conversion needs:
the inventory, the process tree, per-task namespace ids, memory mappings,
pagemaps and page contents, as well as the file table for resolving
file-backed mappings.

Apart from the raw page content images, CRIU images consist of a leading
magic, an image type magic, and then a sequence of protobuf-encoded entries,
each prefixed by its size as a little-endian uint32. The entry types are those
generated by [go-criu].

Additionally, [Dir] writes the marker artifacts of a conversion: per task the
id of the pseudo address space created for it, and per run the number of pages
committed into the memory pool.

A [Dir] keeps its image directory open, so that it continues to work after the
converter has switched into a different mount namespace.

[go-criu]: https://github.com/checkpoint-restore/go-criu
*/
package image
