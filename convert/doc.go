/*
Package convert turns a CRIU process checkpoint into pseudo address spaces
whose page contents live in a memory pool.

A [Converter] converts a single checkpointed container per [Converter.Run]:
after validating the checkpoint images and optionally switching into the
container's namespaces, it first loads and validates the memory areas of all
tasks. Then it converts each task in turn:

  - commit the task's page contents into the memory pool,
  - create a new pseudo address space using the pseudo_mm driver,
  - replay the task's memory areas and page table entries into the pseudo
    address space,
  - write the pseudo address space id marker for the task,
  - replace the task's memory mapping image with its condensed form.

Finally, the number of pages committed to the pool is written to a run
marker. The first error aborts the whole conversion; artifacts written so far
are left as they are.
*/
package convert
