/*
Package nstest provides Ginkgo test helpers for creating transient Linux
kernel namespaces to switch into, such as the network, IPC, UTS, and mount
namespaces of a fake container.

The helpers fail the current test when something goes wrong and schedule
deferred cleanups for the namespace references they return, so callers must
not close the returned file descriptors themselves.
*/
package nstest
