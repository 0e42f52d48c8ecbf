package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/adwski/netboard/client"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// consoleIO implements client.UserIO with stdin prompts.
type consoleIO struct {
	in *bufio.Scanner
}

func newConsoleIO() *consoleIO {
	return &consoleIO{in: bufio.NewScanner(os.Stdin)}
}

func (c *consoleIO) DisplayMessage(text string) {
	fmt.Println(text)
}

func (c *consoleIO) ChooseRegister() bool {
	for {
		fmt.Print("Would you like to register (y/n)? >")
		switch c.readLine() {
		case "y":
			return true
		case "n":
			return false
		}
	}
}

func (c *consoleIO) Username() string {
	fmt.Print("Username >")
	return c.readLine()
}

func (c *consoleIO) Password(register bool) string {
	prompt := "Password >"
	if register {
		prompt = "New password (4-18 characters) >"
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		// not a terminal, fall back to a plain line read
		return c.readLine()
	}
	return string(b)
}

func (c *consoleIO) PostContent() string {
	fmt.Print(">")
	return c.readLine()
}

func (c *consoleIO) readLine() string {
	if !c.in.Scan() {
		return "/quit"
	}
	return c.in.Text()
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("board-client", pflag.ContinueOnError)

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

	cli, err := client.Dial(client.Config{
		Logger: &logger,
		IO:     newConsoleIO(),
		Addr:   *addr,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer func() {
		_ = cli.Close()
	}()

	if err = cli.Run(); err != nil {
		logger.Error().Err(err).Msg("session ended with error")
		os.Exit(1)
	}
}
