package proto

import (
	"bufio"
	"net"
	"strings"
)

// Conn frames packets over a stream connection, one packet per line.
// Reads are buffered; writes go straight to the underlying connection.
// Conn does no internal locking: callers must not interleave writes
// from multiple goroutines.
type Conn struct {
	conn net.Conn
	rd   *bufio.Reader
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		rd:   bufio.NewReader(conn),
	}
}

// ReadPacket blocks until a full line arrives and decodes it.
func (c *Conn) ReadPacket() (string, []string, error) {
	line, err := c.rd.ReadString('\n')
	if err != nil {
		return "", nil, err
	}
	header, chunks := Decode(strings.TrimRight(line, "\r\n"))
	return header, chunks, nil
}

// WritePacket encodes chunks and sends them as one line.
func (c *Conn) WritePacket(chunks ...string) error {
	_, err := c.conn.Write([]byte(Encode(chunks...) + "\n"))
	return err
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
