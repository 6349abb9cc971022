/*
Package nsswitch switches a converter into the namespaces of a live container,
so that resolving file-backed mappings happens against the container's view
of the filesystem.

The namespaces to switch into are passed to the converter as inherited file
descriptors (see package inherit). As Go programs are multi-threaded, joining
a different mount namespace is only possible from an OS-level thread that
doesn't share its filesystem attributes with the other threads of the
process. [Switch.Do] thus runs a function on a separate go routine locked to
its own throw-away OS-level thread that has been attached to the container's
network, mount, IPC, and UTS namespaces, in this order.

Additionally, [Switch.Do] mounts a private procfs instance onto /proc inside a
private copy of the container's mount namespace, so that neither the
container nor the host see any of the converter's mount point changes.
*/
package nsswitch
