// Command kvcli is a minimal interactive client for kvd: it dials a
// server, reads commands from stdin as whitespace-separated tokens,
// and prints each reply frame. It exists as an embeddable test
// harness (see internal/conn), not as a protocol-feature surface.
package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	myApp := cli.NewApp()
	myApp.Name = "kvcli"
	myApp.Usage = "interactive client for kvd"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "addr,a",
			Value: "127.0.0.1:6379",
			Usage: "server address to dial",
		},
	}

	myApp.Action = func(c *cli.Context) error {
		nc, err := net.Dial("tcp", c.String("addr"))
		if err != nil {
			return errors.Wrap(err, "dial")
		}
		defer nc.Close()

		cn := conn.New(nc)
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Fprintf(os.Stderr, "connected to %s\n", c.String("addr"))

		subscribed := false
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			tokens := strings.Fields(line)
			items := make([]frame.Frame, len(tokens))
			for i, tok := range tokens {
				items[i] = frame.NewBulk([]byte(tok))
			}

			if err := cn.WriteFrame(frame.NewArray(items...)); err != nil {
				return errors.Wrap(err, "write")
			}

			// In subscribe mode the background reader prints every reply.
			if subscribed {
				continue
			}

			reply, err := cn.ReadFrame()
			if err != nil {
				return errors.Wrap(err, "read")
			}
			printFrame(reply)

			// SUBSCRIBE leaves every further reply asynchronous; from
			// here on one background reader prints them for the rest of
			// the session.
			if strings.EqualFold(tokens[0], "subscribe") {
				subscribed = true
				go drainAsync(cn)
			}
		}
		return scanner.Err()
	}

	if err := myApp.Run(os.Args); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func drainAsync(c *conn.Connection) {
	for {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		printFrame(f)
	}
}

func printFrame(f frame.Frame) {
	switch f.Kind {
	case frame.Simple:
		fmt.Println("+" + f.Str)
	case frame.Error:
		fmt.Println("-" + f.Str)
	case frame.Integer:
		fmt.Println(f.Int)
	case frame.Bulk:
		if f.IsNull {
			fmt.Println("(nil)")
			return
		}
		fmt.Println(string(f.Bulk))
	case frame.Array:
		parts := make([]string, len(f.Array))
		for i, item := range f.Array {
			parts[i] = frameText(item)
		}
		fmt.Println(strings.Join(parts, " "))
	}
}

func frameText(f frame.Frame) string {
	switch f.Kind {
	case frame.Bulk:
		if f.IsNull {
			return "(nil)"
		}
		return string(f.Bulk)
	case frame.Integer:
		return fmt.Sprintf("%d", f.Int)
	case frame.Simple, frame.Error:
		return f.Str
	default:
		return ""
	}
}
