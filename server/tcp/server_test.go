package tcp

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/adwski/netboard/board"
	"github.com/adwski/netboard/proto"
	"github.com/adwski/netboard/service"
	"github.com/adwski/netboard/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) ([]byte, error) {
	return []byte(password), nil
}

func (plainHasher) Verify(secret []byte, password string) bool {
	return bytes.Equal(secret, []byte(password))
}

func newTestServer(t *testing.T) (string, *service.Service) {
	t.Helper()

	logger := zerolog.Nop()
	brd := board.New(&logger, 10)
	svc := service.NewService(service.Config{
		UserStore: memory.NewStore(plainHasher{}),
		Board:     brd,
		Logger:    &logger,
	})
	srv, err := NewServer(Config{
		Logger:     &logger,
		Service:    svc,
		ListenAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	wg.Add(1)
	errc := make(chan error, 1)
	go srv.Run(ctx, wg, errc)

	t.Cleanup(func() {
		cancel()
		wg.Wait()
		brd.Close()
	})
	return srv.Addr().String(), svc
}

func dialBoard(t *testing.T, addr string) *proto.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	pc := proto.NewConn(conn)
	t.Cleanup(func() {
		_ = pc.Close()
	})
	return pc
}

func expect(t *testing.T, pc *proto.Conn, header string) []string {
	t.Helper()
	gotHeader, chunks, err := pc.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, header, gotHeader, "payload: %v", chunks)
	return chunks
}

// startClient runs the handshake and registers a fresh user.
func startClient(t *testing.T, addr, username, password string) *proto.Conn {
	t.Helper()
	pc := dialBoard(t, addr)
	require.NoError(t, pc.WritePacket(proto.ClientReadWrite))
	expect(t, pc, proto.StatusAck)
	require.NoError(t, pc.WritePacket(proto.ActRegister, username, password))
	chunks := expect(t, pc, proto.StatusAck)
	assert.Equal(t, "Login successful!", chunks[1])
	return pc
}

// startViewer runs the viewer handshake and consumes the replay,
// returning the replayed notification lines.
func startViewer(t *testing.T, addr string) (*proto.Conn, []string) {
	t.Helper()
	pc := dialBoard(t, addr)
	require.NoError(t, pc.WritePacket(proto.ClientReadOnly))
	expect(t, pc, proto.StatusAck)

	var replay []string
	for {
		header, chunks, err := pc.ReadPacket()
		require.NoError(t, err)
		if header == proto.NotifyStop {
			return pc, replay
		}
		require.Equal(t, proto.Notify, header)
		replay = append(replay, chunks[1])
	}
}

func TestRegisterAndPost(t *testing.T) {
	addr, _ := newTestServer(t)

	client := startClient(t, addr, "alice", "secret1")
	viewer, replay := startViewer(t, addr)
	assert.Empty(t, replay)

	require.NoError(t, client.WritePacket(proto.ActPost, "hello"))
	expect(t, client, proto.StatusAck)

	chunks := expect(t, viewer, proto.Notify)
	assert.Contains(t, chunks[1], "alice: hello")

	// a second post arrives next, so the first was delivered exactly once
	require.NoError(t, client.WritePacket(proto.ActPost, "world"))
	expect(t, client, proto.StatusAck)
	chunks = expect(t, viewer, proto.Notify)
	assert.Contains(t, chunks[1], "alice: world")
}

func TestWrongPassword(t *testing.T) {
	addr, svc := newTestServer(t)

	client := startClient(t, addr, "alice", "secret1")
	require.NoError(t, client.WritePacket(proto.ActPost, "/quit"))
	expect(t, client, proto.StatusEnd)

	pc := dialBoard(t, addr)
	require.NoError(t, pc.WritePacket(proto.ClientReadWrite))
	expect(t, pc, proto.StatusAck)
	require.NoError(t, pc.WritePacket(proto.ActLogin, "alice", "wrong99"))

	chunks := expect(t, pc, proto.StatusErr)
	assert.Equal(t, "Incorrect password", chunks[1])
	expect(t, pc, proto.StatusEnd)
	_, _, err := pc.ReadPacket()
	assert.Error(t, err, "connection should be closed")

	assert.Empty(t, svc.Status().Online)
}

func TestUnknownUserAndBadPassword(t *testing.T) {
	addr, _ := newTestServer(t)

	t.Run("unknown user", func(t *testing.T) {
		pc := dialBoard(t, addr)
		require.NoError(t, pc.WritePacket(proto.ClientReadWrite))
		expect(t, pc, proto.StatusAck)
		require.NoError(t, pc.WritePacket(proto.ActLogin, "ghost", "secret1"))
		chunks := expect(t, pc, proto.StatusErr)
		assert.Equal(t, "User does not exist", chunks[1])
		expect(t, pc, proto.StatusEnd)
	})

	t.Run("short password", func(t *testing.T) {
		pc := dialBoard(t, addr)
		require.NoError(t, pc.WritePacket(proto.ClientReadWrite))
		expect(t, pc, proto.StatusAck)
		require.NoError(t, pc.WritePacket(proto.ActRegister, "bob", "abc"))
		chunks := expect(t, pc, proto.StatusErr)
		assert.Equal(t, "Bad password", chunks[1])
		expect(t, pc, proto.StatusEnd)
	})
}

func TestHistoryReplayWindow(t *testing.T) {
	addr, _ := newTestServer(t)

	client := startClient(t, addr, "bob", "secret1")
	for i := 1; i <= 12; i++ {
		require.NoError(t, client.WritePacket(proto.ActPost, "m"+strconv.Itoa(i)))
		expect(t, client, proto.StatusAck)
	}

	_, replay := startViewer(t, addr)
	require.Len(t, replay, 10)
	assert.Contains(t, replay[0], "bob: m3")
	assert.Contains(t, replay[9], "bob: m12")
}

func TestQuitEndsSessionWithoutPosting(t *testing.T) {
	addr, svc := newTestServer(t)

	client := startClient(t, addr, "carol", "secret1")
	require.NoError(t, client.WritePacket(proto.ActPost, "/quit"))

	// stat_end and nothing else, no error, no message recorded
	expect(t, client, proto.StatusEnd)
	assert.Empty(t, svc.History())
	assert.Empty(t, svc.Status().Online)
}

func TestUnknownIdentifierRejected(t *testing.T) {
	addr, _ := newTestServer(t)

	pc := dialBoard(t, addr)
	require.NoError(t, pc.WritePacket("bogus"))
	chunks := expect(t, pc, proto.StatusErr)
	assert.Equal(t, "Unknown client identifier", chunks[1])
	_, _, err := pc.ReadPacket()
	assert.Error(t, err, "no session should be created")
}

func TestDuplicateLoginRejected(t *testing.T) {
	addr, svc := newTestServer(t)

	_ = startClient(t, addr, "dave", "secret1")

	pc := dialBoard(t, addr)
	require.NoError(t, pc.WritePacket(proto.ClientReadWrite))
	expect(t, pc, proto.StatusAck)
	require.NoError(t, pc.WritePacket(proto.ActLogin, "dave", "secret1"))
	chunks := expect(t, pc, proto.StatusErr)
	assert.Equal(t, "User already logged in", chunks[1])
	expect(t, pc, proto.StatusEnd)

	// the first session survives
	assert.Len(t, svc.Status().Online, 1)
}

func TestViewerSeesJoinAndLeave(t *testing.T) {
	addr, _ := newTestServer(t)

	viewer, replay := startViewer(t, addr)
	assert.Empty(t, replay)

	client := startClient(t, addr, "erin", "secret1")
	chunks := expect(t, viewer, proto.Notify)
	assert.Equal(t, "erin has logged in", chunks[1])

	require.NoError(t, client.WritePacket(proto.ActPost, "/quit"))
	expect(t, client, proto.StatusEnd)
	chunks = expect(t, viewer, proto.Notify)
	assert.Equal(t, "erin has logged out", chunks[1])
}

func TestMalformedAuthPacket(t *testing.T) {
	addr, _ := newTestServer(t)

	pc := dialBoard(t, addr)
	require.NoError(t, pc.WritePacket(proto.ClientReadWrite))
	expect(t, pc, proto.StatusAck)
	require.NoError(t, pc.WritePacket(proto.ActLogin, "alice"))

	chunks := expect(t, pc, proto.StatusErr)
	assert.Equal(t, "Communication error", chunks[1])
	expect(t, pc, proto.StatusEnd)
}

func TestPostExtraChunksIgnored(t *testing.T) {
	addr, svc := newTestServer(t)

	client := startClient(t, addr, "frank", "secret1")
	// a delimiter inside a body splits into extra chunks on the wire,
	// only the first one is the message
	require.NoError(t, client.WritePacket(proto.ActPost, "a", "b"))
	expect(t, client, proto.StatusAck)

	hist := svc.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "a", hist[0].Body)
}

func TestForeignHeaderEndsSession(t *testing.T) {
	addr, svc := newTestServer(t)

	client := startClient(t, addr, "grace", "secret1")
	require.NoError(t, client.WritePacket(proto.StatusEnd, "Client closed connection"))

	expect(t, client, proto.StatusEnd)
	assert.Empty(t, svc.Status().Online)
}
