package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.dedis.ch/hopdht/gui/console"
	"go.dedis.ch/hopdht/gui/httpnode/controller"
	"go.dedis.ch/hopdht/internal/vclock"
	"go.dedis.ch/hopdht/peer"
	"go.dedis.ch/hopdht/peer/impl"
	"go.dedis.ch/hopdht/registry/standard"
	"go.dedis.ch/hopdht/transport/tcp"
	"go.dedis.ch/hopdht/types"
	"golang.org/x/xerrors"
)

func main() {
	app := &cli.App{
		Name:  "hopdht",
		Usage: "run a single-hop key/value DHT node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "127.0.0.1",
				Usage: "advertised and listening host",
			},
			&cli.IntFlag{
				Name:     "port",
				Required: true,
				Usage:    "listening port",
			},
			&cli.Int64Flag{
				Name:  "id",
				Usage: "node identifier, defaults to the port",
			},
			&cli.StringFlag{
				Name:  "bootstrap",
				Usage: "host:port of a node to join, a bare port means 127.0.0.1:port",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: time.Second * 5,
				Usage: "deadline of every outbound call, 0 for none",
			},
			&cli.UintFlag{
				Name:  "maxhops",
				Value: peer.DefaultMaxHops,
				Usage: "number of times a request may be forwarded",
			},
			&cli.StringFlag{
				Name:  "codec",
				Value: "json",
				Usage: "wire codec, json or protobuf",
			},
			&cli.StringFlag{
				Name:  "httpaddr",
				Usage: "serve the operator HTTP API on this address",
			},
			&cli.StringFlag{
				Name:  "trace",
				Usage: "write a GoVector log with this file prefix",
			},
			&cli.StringFlag{
				Name:  "loglevel",
				Value: "info",
				Usage: "trace, debug, info, warn, error or disabled",
			},
			&cli.BoolFlag{
				Name:  "noconsole",
				Usage: "do not read commands from stdin",
			},
		},
		Action: start,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run node")
	}
}

func start(c *cli.Context) error {
	setupLog(c.String("loglevel"))

	port := c.Int("port")
	id := int64(port)
	if c.IsSet("id") {
		id = c.Int64("id")
	}

	identity := types.NodeIdentity{
		ID:   id,
		Host: c.String("host"),
		Port: port,
	}

	codec, err := standard.NewCodec(c.String("codec"))
	if err != nil {
		return xerrors.Errorf("failed to create codec: %v", err)
	}

	trans := tcp.NewTCP()

	sock, err := trans.CreateSocket(identity.Addr())
	if err != nil {
		return xerrors.Errorf("failed to create socket: %v", err)
	}

	tracer := vclock.NewNoop()
	if c.String("trace") != "" {
		tracer = vclock.NewTracer(strconv.FormatInt(id, 10), c.String("trace"))
	}

	conf := peer.Configuration{
		Identity:        identity,
		Socket:          sock,
		Transport:       trans,
		MessageRegistry: standard.NewRegistryWithCodec(codec),
		BootstrapAddr:   bootstrapAddr(c.String("bootstrap")),
		RequestTimeout:  c.Duration("timeout"),
		MaxHops:         c.Uint("maxhops"),
		Tracer:          tracer,
	}

	node := impl.NewPeer(conf)

	err = node.Start()
	if err != nil {
		return xerrors.Errorf("failed to start node: %v", err)
	}

	log.Info().Int64("id", id).Str("addr", sock.GetAddress()).Msg("node started")

	var srv *http.Server
	if c.String("httpaddr") != "" {
		srv = serveHTTP(c.String("httpaddr"), node)
	}

	if c.Bool("noconsole") {
		waitSignal()
	} else {
		err = console.NewConsole(node, os.Stdin, os.Stdout).Run()
		if err != nil {
			log.Error().Err(err).Msg("console stopped")
		}
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		err = srv.Shutdown(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to shutdown http server")
		}
	}

	err = node.Stop()
	if err != nil {
		return xerrors.Errorf("failed to stop node: %v", err)
	}

	return nil
}

func serveHTTP(addr string, node peer.Peer) *http.Server {
	logger := log.With().Str("role", "http").Logger()
	ctrl := controller.NewDHT(node, &logger)

	srv := &http.Server{
		Addr:    addr,
		Handler: ctrl.Mux(),
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	log.Info().Str("addr", addr).Msg("http server started")

	return srv
}

func waitSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

// bootstrapAddr accepts host:port or a bare port.
func bootstrapAddr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	_, err := strconv.Atoi(s)
	if err == nil {
		return net.JoinHostPort("127.0.0.1", s)
	}

	return s
}

func setupLog(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}
