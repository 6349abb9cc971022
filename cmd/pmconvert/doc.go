/*
Command pmconvert converts a CRIU checkpoint into pseudo address spaces whose
page contents live in a local or remote memory pool.

	pmconvert --images-dir /var/lib/ckpt --dax-device /dev/dax0.0 \
	    --inherit-fd 'fd[3]:pseudo-mm-drv' --inherit-fd 'fd[4]:switch-ns-mnt'

The pseudo_mm driver must be passed as an inherited file descriptor with the
key “pseudo-mm-drv”. Container namespaces to switch into are passed with the
keys “switch-ns-net”, “switch-ns-mnt”, “switch-ns-ipc”, and “switch-ns-uts”.
*/
package main
