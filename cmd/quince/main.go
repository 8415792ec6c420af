// Command quince is a minimal QUIC client and server for exercising the
// transport: "quince client <addr>" dials and sends one request,
// "quince server -cert ... -key ..." accepts connections and answers
// each stream's request with a fixed HTTP/0.9 status line.
package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/nyxquic/quic/transport"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "client":
		err = clientCommand(os.Args[2:])
	case "server":
		err = serverCommand(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "quince:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: quince <client|server> [options]")
}

// newConfig builds the transport.Config shared by both commands, tuned
// with the same defaults the teacher's original fragment assumed.
func newConfig() *transport.Config {
	return &transport.Config{
		TLSConfig:      &tls.Config{NextProtos: []string{"quince"}},
		Params:         transport.DefaultParams(),
		MaxIdleTimeout: 30 * time.Second,
	}
}
