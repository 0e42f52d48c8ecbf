package main

import (
	"fmt"
	"os"

	"github.com/adwski/netboard/client"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// consoleSink prints board notifications to stdout.
type consoleSink struct{}

func (consoleSink) DisplayMessage(text string) {
	fmt.Println(text)
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("board-viewer", pflag.ContinueOnError)

	var (
		addr     = fs.StringP("addr", "a", "localhost:7777", "board server address")
		logLevel = fs.StringP("log-level", "l", "warn", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	viewer, err := client.DialViewer(client.ViewerConfig{
		Logger: &logger,
		Sink:   consoleSink{},
		Addr:   *addr,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer func() {
		_ = viewer.Close()
	}()

	if err = viewer.Run(); err != nil {
		logger.Error().Err(err).Msg("session ended with error")
		os.Exit(1)
	}
}
