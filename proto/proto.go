// Package proto implements the line-oriented board protocol.
//
// Each packet is a single line of chunks separated by Delim. Chunk 0 is the
// header tag, remaining chunks are header-specific payload.
package proto

import "strings"

// Header tags.
const (
	StatusAck = "stat_ack"
	StatusErr = "stat_err"
	StatusEnd = "stat_end"

	ActLogin    = "act_log"
	ActRegister = "act_reg"
	ActPost     = "act_post"

	Notify     = "not"
	NotifyStop = "not_stop" // marks the end of history replay

	ClientReadOnly  = "cli_ro"
	ClientReadWrite = "cli_rw"
)

// Delim separates chunks within a packet. It sits outside the printable
// range so ordinary text input cannot contain it. There is no escaping:
// a chunk carrying Delim would corrupt framing, which is why the server
// rejects such payloads before they reach the wire.
const Delim = "\x17"

// Encode joins chunks into a single packet. Chunk 0 is the header.
func Encode(chunks ...string) string {
	return strings.Join(chunks, Delim)
}

// Decode splits a packet into its chunks and returns the header alongside.
// chunks[0] == header always holds. An empty or delimiter-only packet
// decodes to an empty header, which session handlers treat as unknown.
func Decode(packet string) (string, []string) {
	chunks := strings.Split(packet, Delim)
	return chunks[0], chunks
}
