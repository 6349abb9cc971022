/*
Package pool commits the raw page content of checkpointed tasks into a memory
pool that later backs pseudo address spaces.

A [Pool] is backed by exactly one of two backends fixed at construction:

  - [Local]: a directly mappable (DAX/PMEM) device; committing maps a window
    of the device, copies the page content into it, and unmaps the window.
  - [Remote]: a cooperating pool server connected over a stream unix domain
    socket; committing hands over the page content file descriptor together
    with the target page offset and waits for the server's acknowledgement.

[Pool.Commit] is the only way to advance the pool's page offset cursor and its
running count of committed pages, so that both always move in lockstep, and by
exactly the number of pages committed.
*/
package pool
