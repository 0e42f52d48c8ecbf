package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/netboard/board"
	httpServer "github.com/adwski/netboard/server/http"
	tcpServer "github.com/adwski/netboard/server/tcp"
	wsServer "github.com/adwski/netboard/server/ws"
	"github.com/adwski/netboard/service"
	store "github.com/adwski/netboard/storage/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("board-server", pflag.ContinueOnError)

	var (
		listenAddr  = fs.StringP("listen-addr", "a", ":7777", "board listen address")
		apiAddr     = fs.StringP("api-listen-addr", "p", ":8080", "status api listen address")
		wsAddr      = fs.StringP("ws-listen-addr", "w", ":8888", "websocket viewer gateway listen address")
		historySize = fs.IntP("history-size", "n", board.DefaultHistorySize, "number of recent messages replayed to new viewers")
		logLevel    = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	brd := board.New(&logger, *historySize)
	svc := service.NewService(service.Config{
		UserStore: store.NewStore(store.NewBcryptHasher()),
		Board:     brd,
		Logger:    &logger,
	})
	tcpSrv, err := tcpServer.NewServer(tcpServer.Config{
		Logger:     &logger,
		Service:    svc,
		ListenAddr: *listenAddr,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start board listener")
	}
	apiSrv := httpServer.NewServer(httpServer.Config{
		Logger:     &logger,
		Board:      svc,
		ListenAddr: *apiAddr,
	})
	wsSrv := wsServer.NewServer(wsServer.Config{
		Logger:     &logger,
		Feed:       svc,
		ListenAddr: *wsAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 3)
	)
	wg.Add(3)
	go tcpSrv.Run(ctx, wg, errc)
	go apiSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
	brd.Close()
}
