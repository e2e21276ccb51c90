// Package dblock serializes test packages that share the integration
// database. Separate test binaries cannot coordinate through sync, so the
// lock is a loopback TCP listener instead.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45433"

// Acquire blocks until the shared database lock is free and returns its
// release func.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
