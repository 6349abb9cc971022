/*
Package driver is a typed client for the pseudo_mm kernel module control
device.

The pseudo_mm kernel module manages so-called “pseudo address spaces”: kernel
objects representing a process's virtual memory layout whose pages live in a
registered memory pool (such as a DAX device) instead of private anonymous
memory. A [Client] issues the ioctl(2) requests of the module's control
device: registering the pool, creating and deleting pseudo address spaces,
adding mappings, setting up page tables pointing into the pool, attaching a
pseudo address space to a process, and bringing pooled ranges back into local
memory.

The control device file descriptor is never opened by this package itself;
instead, it is handed over by the caller, typically as an inherited file
descriptor.
*/
package driver
