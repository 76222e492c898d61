// Command client is a thin terminal chat client: it copies server lines to
// stdout and forwards stdin lines to the server. All protocol logic lives
// server-side.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
)

func main() {
	addr := flag.String("addr", "localhost:4000", "server address")
	flag.Parse()

	fmt.Printf("Connecting to %s...\n", *addr)
	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected to chat server!")
	fmt.Println()
	fmt.Println("Available commands:")
	fmt.Println("  LOGIN <username>  - Log in")
	fmt.Println("  MSG <text>        - Send message")
	fmt.Println("  WHO               - List users")
	fmt.Println("  DM <user> <text>  - Private message")
	fmt.Println("  PING              - Test connection")
	fmt.Println()
	fmt.Println("Type your command and press Enter (or 'exit' to quit):")

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			fmt.Println("Server:", scanner.Text())
		}
	}()

	go func() {
		stdin := bufio.NewScanner(os.Stdin)
		for stdin.Scan() {
			line := strings.TrimSpace(stdin.Text())
			if strings.EqualFold(line, "exit") {
				fmt.Println("Disconnecting...")
				_ = conn.Close()
				return
			}
			if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
				return
			}
		}
	}()

	<-done
	fmt.Println("Disconnected from server")
}
