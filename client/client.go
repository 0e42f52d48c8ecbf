// Package client is the peer-side session library. The session state
// machines live here; all user interaction goes through the UserIO
// capability interface, so front ends stay thin.
package client

import (
	"errors"
	"net"

	"github.com/adwski/netboard/proto"
	"github.com/rs/zerolog"
)

var (
	ErrDial     = errors.New("unable to connect to server")
	ErrRejected = errors.New("server rejected session")
	ErrProtocol = errors.New("unexpected server response")
)

// UserIO is everything a posting front end must provide.
type UserIO interface {
	DisplayMessage(text string)
	ChooseRegister() bool
	Username() string
	Password(register bool) string
	PostContent() string
}

type Config struct {
	Logger *zerolog.Logger
	IO     UserIO
	Addr   string
}

// Client runs the posting session: handshake -> login/register -> post
// loop. Ends on /quit, a server error, or the connection going away.
type Client struct {
	logger zerolog.Logger
	io     UserIO
	pc     *proto.Conn
}

func Dial(cfg Config) (*Client, error) {
	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Join(ErrDial, err)
	}
	c := &Client{
		logger: cfg.Logger.With().Str("component", "client").Logger(),
		io:     cfg.IO,
		pc:     proto.NewConn(conn),
	}
	c.logger.Debug().Str("addr", cfg.Addr).Msg("connected")
	return c, nil
}

func (c *Client) Run() error {
	if err := c.pc.WritePacket(proto.ClientReadWrite); err != nil {
		return err
	}
	header, chunks, err := c.pc.ReadPacket()
	if err != nil {
		return err
	}
	if header != proto.StatusAck {
		c.displayServerError(chunks)
		return ErrRejected
	}

	c.io.DisplayMessage("Welcome to the board!")
	if err = c.login(); err != nil {
		return err
	}
	c.io.DisplayMessage("/quit to terminate session")
	return c.postLoop()
}

func (c *Client) login() error {
	register := c.io.ChooseRegister()
	username := c.io.Username()
	password := c.io.Password(register)

	header := proto.ActLogin
	if register {
		header = proto.ActRegister
	}
	if err := c.pc.WritePacket(header, username, password); err != nil {
		return err
	}

	respHeader, chunks, err := c.pc.ReadPacket()
	if err != nil {
		return err
	}
	if respHeader != proto.StatusAck {
		c.displayServerError(chunks)
		return ErrRejected
	}
	c.io.DisplayMessage("Login successful!")
	return nil
}

func (c *Client) postLoop() error {
	for {
		input := c.io.PostContent()
		if input == "" {
			continue
		}
		if err := c.pc.WritePacket(proto.ActPost, input); err != nil {
			return err
		}

		header, chunks, err := c.pc.ReadPacket()
		if err != nil {
			return err
		}
		switch header {
		case proto.StatusAck:
		case proto.StatusEnd:
			c.io.DisplayMessage(payload(chunks))
			return nil
		case proto.StatusErr:
			c.displayServerError(chunks)
		default:
			return ErrProtocol
		}
	}
}

// Close tells the server the session is over and releases the connection.
func (c *Client) Close() error {
	_ = c.pc.WritePacket(proto.StatusEnd, "Client closed connection")
	return c.pc.Close()
}

func (c *Client) displayServerError(chunks []string) {
	c.io.DisplayMessage("Error: " + payload(chunks))
}

func payload(chunks []string) string {
	if len(chunks) < 2 {
		return ""
	}
	return chunks[1]
}
