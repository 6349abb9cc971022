/*
Package inherit keeps track of file descriptors a converter inherited from its
parent process, keyed by the resource they reference.

Inherited file descriptors are specified in the form “fd[N]:key”, such as
“fd[3]:pseudo-mm-drv” for the pseudo_mm control device, or
“fd[5]:switch-ns-mnt” for the mount namespace of the container to switch into.
*/
package inherit
