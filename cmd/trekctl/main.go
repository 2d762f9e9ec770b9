// trekctl sends one message to a running treksafer socket transport and
// prints the reply. Useful for poking a deployment without a satellite
// device.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	host := pflag.String("host", "127.0.0.1", "socket transport host")
	port := pflag.Int("port", 8088, "socket transport port")
	timeout := pflag.Duration("timeout", 30*time.Second, "connect and reply timeout")
	pflag.Parse()

	message := strings.TrimSpace(strings.Join(pflag.Args(), " "))
	if message == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read message from stdin: %v\n", err)
			os.Exit(1)
		}
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		fmt.Fprintln(os.Stderr, "usage: trekctl [flags] <message>  (or pipe the message on stdin)")
		os.Exit(2)
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	conn, err := net.DialTimeout("tcp", addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(*timeout))

	if _, err := conn.Write([]byte(message)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to send message: %v\n", err)
		os.Exit(1)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read reply: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(reply))
}
