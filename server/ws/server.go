// Package ws is the read-only websocket viewer gateway. A peer connecting
// to /watch gets the same notification feed as a TCP viewer - history
// replay first, then the live stream - as JSON frames.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/netboard/board"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	// viewers send nothing meaningful, reads exist only for pong and
	// close detection
	defaultWebSocketMaxMessageSize = 512

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second

	FrameNotify    = "notify"
	FrameReplayEnd = "replay-end"
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// FeedService hands out board subscriptions.
	FeedService interface {
		Subscribe() *board.Subscription
		Unsubscribe(sub *board.Subscription)
	}

	// Frame is one gateway message.
	Frame struct {
		Kind string `json:"kind"`
		Text string `json:"text,omitempty"`
	}

	Config struct {
		Logger     *zerolog.Logger
		Feed       FeedService
		ListenAddr string
	}

	Server struct {
		feed FeedService
		ws   *websocket.Upgrader
		*http.Server

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "ws-gateway").Logger(),
		feed:   cfg.Feed,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/watch", srv.watch)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

func (srv *Server) watch(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sub := srv.feed.Subscribe()
	srv.logger.Debug().
		Str("peer", conn.RemoteAddr().String()).
		Msg("websocket viewer subscribed")

	go srv.handleWSConn(conn, sub)
}

func (srv *Server) handleWSConn(conn *websocket.Conn, sub *board.Subscription) {
	logger := srv.logger.With().
		Str("peer", conn.RemoteAddr().String()).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	wg.Add(2)
	go func() {
		webSocketSender(ctx, wg, conn, sub, &logger)
		cancel()
	}()
	go func() {
		webSocketReceiver(ctx, wg, conn, &logger)
		cancel()
	}()

	wg.Wait()
	webSocketCloser(conn, &logger)
	srv.feed.Unsubscribe(sub)
	logger.Debug().Msg("websocket viewer session ended")
}

func webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	sub *board.Subscription,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()

	for _, msg := range sub.Replay() {
		if !writeFrame(conn, Frame{Kind: FrameNotify, Text: msg.String()}, logger) {
			return
		}
	}
	if !writeFrame(conn, Frame{Kind: FrameReplayEnd}, logger) {
		return
	}

SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
			}
			logger.Trace().Msg("ping sent")

		case text, ok := <-sub.Feed():
			if !ok {
				break SendLoop
			}
			if !writeFrame(conn, Frame{Kind: FrameNotify, Text: text}, logger) {
				break SendLoop
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame Frame, logger *zerolog.Logger) bool {
	b, err := json.Marshal(&frame)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshall outgoing frame")
		return false
	}
	if err = conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline)); err != nil {
		logger.Error().Err(err).Msg("failed to set websocket write deadline")
		return false
	}
	if err = conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Error().Err(err).Msg("failed to write outgoing frame")
		return false
	}
	return true
}

func webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	if err := readDeadLineFunc(defaultPongWait); err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

	// incoming payloads are discarded, the read side exists to service
	// pongs and notice the peer going away
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, wsErr := conn.ReadMessage(); wsErr != nil {
				if websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					logger.Debug().Err(wsErr).Msg("connection closed")
				} else {
					logger.Debug().Err(wsErr).Msg("receive ended")
				}
				return
			}
		}
	}
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage, []byte{})
		if wsErr != nil {
			logger.Debug().Err(wsErr).Msg("failed to send close message")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Debug().Err(wsErr).Msg("failed to close websocket connection")
	}
}
