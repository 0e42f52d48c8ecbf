package tcp

import (
	"errors"
	"strings"

	"github.com/adwski/netboard/proto"
	"github.com/rs/zerolog"
)

var (
	errMalformedPacket = errors.New("malformed packet")
	errUnknownHeader   = errors.New("unknown header")
)

// clientSession runs the read-write state machine:
// handshake -> login/register -> post loop -> close.
// Cleanup runs on every exit path: logout happens iff the session
// authenticated, the connection is always released.
func (srv *Server) clientSession(pc *proto.Conn) {
	logger := srv.logger.With().
		Str("session", "client").
		Str("peer", pc.RemoteAddr().String()).
		Logger()

	var username string
	defer func() {
		if username != "" {
			srv.svc.Logout(username)
		}
		_ = pc.WritePacket(proto.StatusEnd, "Server closed connection")
		_ = pc.Close()
		logger.Debug().Msg("client session closed")
	}()

	if err := pc.WritePacket(proto.StatusAck, "client session started"); err != nil {
		return
	}
	logger.Debug().Msg("client session started")

	name, err := srv.authenticate(pc)
	if name != "" {
		username = name
	}
	if err != nil {
		logger.Debug().Err(err).Msg("authentication failed")
		return
	}
	logger.Debug().Str("user", username).Msg("user authenticated")

	srv.postLoop(pc, username, &logger)
}

// authenticate consumes one login or register packet. The returned
// username is non-empty iff the session went online and needs a logout.
func (srv *Server) authenticate(pc *proto.Conn) (string, error) {
	header, chunks, err := pc.ReadPacket()
	if err != nil {
		return "", err
	}
	if len(chunks) < 3 {
		_ = pc.WritePacket(proto.StatusErr, "Communication error")
		return "", errMalformedPacket
	}
	username, password := chunks[1], chunks[2]

	switch header {
	case proto.ActLogin:
		err = srv.svc.Login(username, password, pc)
	case proto.ActRegister:
		err = srv.svc.Register(username, password, pc)
	default:
		_ = pc.WritePacket(proto.StatusErr, "Communication error")
		return "", errUnknownHeader
	}
	if err != nil {
		_ = pc.WritePacket(proto.StatusErr, statusText(err))
		return "", err
	}
	return username, pc.WritePacket(proto.StatusAck, "Login successful!")
}

// postLoop handles the authenticated phase: one act_post per iteration
// until /quit, a foreign header, or the peer goes away.
func (srv *Server) postLoop(pc *proto.Conn, username string, logger *zerolog.Logger) {
	for {
		header, chunks, err := pc.ReadPacket()
		if err != nil {
			logger.Debug().Err(err).Msg("peer disconnected")
			return
		}
		if header != proto.ActPost || len(chunks) < 2 {
			return
		}
		body := chunks[1]

		if strings.HasPrefix(body, "/") {
			if strings.HasPrefix(body[1:], "quit") {
				return
			}
		}

		if err = srv.svc.Post(username, body); err != nil {
			logger.Debug().Err(err).Msg("post rejected")
			if err = pc.WritePacket(proto.StatusErr, statusText(err)); err != nil {
				return
			}
			continue
		}
		if err = pc.WritePacket(proto.StatusAck, "Message posted"); err != nil {
			return
		}
	}
}
