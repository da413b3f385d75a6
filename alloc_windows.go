//go:build windows

package vtable

import "golang.org/x/sys/windows"

const protRW = windows.PAGE_READWRITE
