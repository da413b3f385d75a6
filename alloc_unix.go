//go:build unix

package vtable

import "golang.org/x/sys/unix"

const protRW = unix.PROT_READ | unix.PROT_WRITE
