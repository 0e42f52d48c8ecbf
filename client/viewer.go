package client

import (
	"errors"
	"net"

	"github.com/adwski/netboard/proto"
	"github.com/rs/zerolog"
)

// NotificationSink receives the board feed. UserIO satisfies it, so a
// combined front end can serve both roles.
type NotificationSink interface {
	DisplayMessage(text string)
}

type ViewerConfig struct {
	Logger *zerolog.Logger
	Sink   NotificationSink
	Addr   string
}

// Viewer runs the read-only session: handshake, history replay, then the
// live stream until the server ends the session or the connection drops.
type Viewer struct {
	logger zerolog.Logger
	sink   NotificationSink
	pc     *proto.Conn
}

func DialViewer(cfg ViewerConfig) (*Viewer, error) {
	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Join(ErrDial, err)
	}
	v := &Viewer{
		logger: cfg.Logger.With().Str("component", "viewer").Logger(),
		sink:   cfg.Sink,
		pc:     proto.NewConn(conn),
	}
	v.logger.Debug().Str("addr", cfg.Addr).Msg("connected")
	return v, nil
}

func (v *Viewer) Run() error {
	if err := v.pc.WritePacket(proto.ClientReadOnly); err != nil {
		return err
	}
	header, chunks, err := v.pc.ReadPacket()
	if err != nil {
		return err
	}
	if header != proto.StatusAck {
		v.sink.DisplayMessage("Error: " + payload(chunks))
		return ErrRejected
	}

	for {
		header, chunks, err = v.pc.ReadPacket()
		if err != nil {
			return err
		}
		switch header {
		case proto.Notify:
			v.sink.DisplayMessage(payload(chunks))
		case proto.NotifyStop:
			v.sink.DisplayMessage("--- end of replay ---")
		case proto.StatusEnd:
			v.sink.DisplayMessage(payload(chunks))
			return nil
		default:
			v.sink.DisplayMessage("Error: " + payload(chunks))
			return ErrProtocol
		}
	}
}

// Close tells the server the viewer is done and releases the connection.
func (v *Viewer) Close() error {
	_ = v.pc.WritePacket(proto.StatusEnd, "Viewer closed connection")
	return v.pc.Close()
}
