// Package tcp serves the board's line protocol: it accepts connections,
// classifies each peer as posting client or read-only viewer from its
// first packet, and runs the matching session state machine.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/adwski/netboard/board"
	"github.com/adwski/netboard/proto"
	"github.com/adwski/netboard/service"
	"github.com/adwski/netboard/storage/memory"
	"github.com/rs/zerolog"
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// BoardService is everything the session handlers need from the
	// policy layer.
	BoardService interface {
		Register(username, password string, h service.SessionHandle) error
		Login(username, password string, h service.SessionHandle) error
		Logout(username string)
		Post(author, body string) error
		Subscribe() *board.Subscription
		Unsubscribe(sub *board.Subscription)
	}

	Config struct {
		Logger     *zerolog.Logger
		Service    BoardService
		ListenAddr string
	}

	Server struct {
		logger zerolog.Logger
		svc    BoardService
		ls     net.Listener
	}
)

func NewServer(cfg Config) (*Server, error) {
	ls, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, errors.Join(ErrUnexpected, err)
	}
	return &Server{
		logger: cfg.Logger.With().Str("component", "board-server").Logger(),
		svc:    cfg.Service,
		ls:     ls,
	}, nil
}

// Addr returns the bound listen address.
func (srv *Server) Addr() net.Addr {
	return srv.ls.Addr()
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	go func() {
		<-ctx.Done()
		_ = srv.ls.Close()
	}()

	srv.logger.Info().Str("addr", srv.ls.Addr().String()).Msg("server started")

	for {
		conn, err := srv.ls.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errc <- errors.Join(ErrUnexpected, err)
			return
		}
		// Classification runs in its own goroutine so a peer that
		// stalls before identifying cannot block the accept loop.
		go srv.dispatch(proto.NewConn(conn))
	}
}

// dispatch reads the identifier packet and hands the connection to the
// matching session handler.
func (srv *Server) dispatch(pc *proto.Conn) {
	header, _, err := pc.ReadPacket()
	if err != nil {
		srv.logger.Debug().Err(err).Msg("peer vanished before identifying")
		_ = pc.Close()
		return
	}

	switch header {
	case proto.ClientReadWrite:
		srv.clientSession(pc)
	case proto.ClientReadOnly:
		srv.viewerSession(pc)
	default:
		srv.logger.Debug().
			Str("header", header).
			Str("peer", pc.RemoteAddr().String()).
			Msg("unknown client identifier")
		_ = pc.WritePacket(proto.StatusErr, "Unknown client identifier")
		_ = pc.Close()
	}
}

// statusText maps internal errors to the status message sent to the peer.
func statusText(err error) string {
	switch {
	case errors.Is(err, service.ErrBadPassword):
		return "Bad password"
	case errors.Is(err, service.ErrBadUsername):
		return "Bad username"
	case errors.Is(err, service.ErrAlreadyOnline):
		return "User already logged in"
	case errors.Is(err, service.ErrBadBody):
		return "Message contains reserved characters"
	case errors.Is(err, memory.ErrWrongPassword):
		return "Incorrect password"
	case errors.Is(err, memory.ErrNoSuchUser):
		return "User does not exist"
	case errors.Is(err, memory.ErrUserExists):
		return "User already exists"
	default:
		return "Communication error"
	}
}
