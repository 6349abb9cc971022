/*
Package pseudomm converts CRIU process checkpoints into pseudo address spaces
whose page contents live in a pooled memory tier instead of ordinary anonymous
memory.

The pseudo_mm kernel module manages pseudo address spaces: kernel objects
representing the virtual memory layout of a process, with their page table
entries pointing into a registered memory pool. A restored process later gets
its pseudo address space attached instead of having its pages copied back in.

# Converting

The [github.com/thediveo/pseudomm/convert] package orchestrates a conversion
run: for each checkpointed task it commits the page contents into the pool,
creates and populates a pseudo address space, and rewrites the task's memory
mapping image into a condensed form where only the vDSO and VVAR areas are
still described literally. The pmconvert command wraps a conversion run.

# Memory Pools

A memory pool is either a local DAX/PMEM device directly mapped into the
converter, or a remote pool reached through a cooperating pool server over a
unix domain socket; see the [github.com/thediveo/pseudomm/pool] package. The
[github.com/thediveo/pseudomm/poolserver] package implements a reference pool
server placing page contents into a backing file.

# Namespaces

When converting a live container's checkpoint, mapped files need to be
resolved inside the container. The [github.com/thediveo/pseudomm/nsswitch]
package runs the conversion inside the container's existing namespaces,
which are passed in as inherited file descriptors; see
[github.com/thediveo/pseudomm/inherit].
*/
package pseudomm
