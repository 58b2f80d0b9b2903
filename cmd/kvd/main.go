package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/LucienY01/mini-redis/internal/server"
)

// VERSION is populated via build flags when packaging official binaries,
// the same idiom the teacher's server/main.go uses.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "kvd"
	myApp.Usage = "in-memory key/value + pub/sub server"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Value: ":6379",
			Usage: "listen address",
		},
		cli.BoolFlag{
			Name:  "pprof",
			Usage: "enable pprof endpoint on :6060",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "suppress per-connection open/close log lines",
		},
		cli.StringFlag{
			Name:  "c",
			Usage: "config file from json, which will override the command line parameters",
		},
	}

	myApp.Action = func(c *cli.Context) error {
		config := Config{
			Listen: c.String("listen"),
			Pprof:  c.Bool("pprof"),
			Quiet:  c.Bool("quiet"),
		}

		if c.String("c") != "" {
			if err := parseJSONConfig(&config, c.String("c")); err != nil {
				color.Red("failed to parse config file %q: %v", c.String("c"), err)
			}
		}

		log.Println("version:", VERSION)
		log.Println("listening on:", config.Listen)
		log.Println("connection cap:", server.MaxConnections)
		log.Println("pprof:", config.Pprof)
		log.Println("quiet:", config.Quiet)

		lis, err := net.Listen("tcp", config.Listen)
		if err != nil {
			return errors.Wrap(err, "listen")
		}

		srv := server.New(lis)
		srv.Quiet = config.Quiet

		if config.Pprof {
			http.HandleFunc("/debug/dbsize", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintln(w, srv.Store().Len())
			})
			go http.ListenAndServe(":6060", nil)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			log.Println("shutting down")
			srv.Shutdown()
		}()

		if err := srv.Serve(); err != nil {
			return errors.Wrap(err, "serve")
		}
		return nil
	}

	if err := myApp.Run(os.Args); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
