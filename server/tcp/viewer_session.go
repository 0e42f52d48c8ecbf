package tcp

import "github.com/adwski/netboard/proto"

// viewerSession runs the read-only state machine:
// handshake -> replay -> live stream -> close.
// The subscription is taken before the handshake ack, with the replay
// snapshot preloaded by the board in the same critical section that
// serializes posts, so the replay plus the feed is exactly the post
// sequence with no duplicate and no gap.
//
// The server never reads from a viewer; a dead peer is detected when a
// push fails.
func (srv *Server) viewerSession(pc *proto.Conn) {
	logger := srv.logger.With().
		Str("session", "viewer").
		Str("peer", pc.RemoteAddr().String()).
		Logger()

	sub := srv.svc.Subscribe()
	defer func() {
		srv.svc.Unsubscribe(sub)
		_ = pc.WritePacket(proto.StatusEnd, "Server closed connection")
		_ = pc.Close()
		logger.Debug().Msg("viewer session closed")
	}()

	if err := pc.WritePacket(proto.StatusAck, "viewer session started"); err != nil {
		return
	}
	logger.Debug().Msg("viewer session started")

	for _, msg := range sub.Replay() {
		if err := pc.WritePacket(proto.Notify, msg.String()); err != nil {
			logger.Debug().Err(err).Msg("replay push failed")
			return
		}
	}
	if err := pc.WritePacket(proto.NotifyStop, "end of replay"); err != nil {
		return
	}

	for text := range sub.Feed() {
		if err := pc.WritePacket(proto.Notify, text); err != nil {
			logger.Debug().Err(err).Msg("stream push failed")
			return
		}
	}
	// feed closed: either the board dropped us as stalled or the server
	// is shutting down
}
