package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/kvasync/asyncore/protocol"
)

// InfoCommand issues a single info-protocol request/response over a
// dedicated, short-lived connection: a tiny line-oriented "name\n" ->
// "name\tvalue\n" exchange, framed the same way Node's session-token
// authentication round trip is (protocol.MsgTypeInfo), consistent with
// Aerospike's documented info-protocol shape (SPEC_FULL.md §6). It is
// kept entirely inside this package so the cluster-stability validation
// hook never leaks into the command engine proper (§4.7 item 4).
type InfoCommand struct {
	Name string
}

// Request dials a fresh connection to node, sends the info request and
// parses the single "name\tvalue\n" response line, returning value.
func (ic InfoCommand) Request(ctx context.Context, node *Node) (string, error) {
	conn := node.CreateAsyncConnection()
	defer func() { _ = conn.Close() }()

	if err := conn.Connect(ctx, node.Addr); err != nil {
		return "", fmt.Errorf("cluster: info request to %s: %w", node.Name, err)
	}

	payload := []byte(ic.Name + "\n")
	req := make([]byte, protocol.HeaderSize+len(payload))
	protocol.WriteHeader(req, protocol.Header{Version: protocol.DefaultVersion, Type: protocol.MsgTypeInfo, Length: int64(len(payload))})
	copy(req[protocol.HeaderSize:], payload)
	if err := conn.Send(req, 0, len(req)); err != nil {
		return "", fmt.Errorf("cluster: info request to %s: %w", node.Name, err)
	}

	hdrBuf := make([]byte, protocol.HeaderSize)
	if err := conn.Receive(hdrBuf, 0, protocol.HeaderSize); err != nil {
		return "", fmt.Errorf("cluster: info response from %s: %w", node.Name, err)
	}
	hdr, err := protocol.ParseHeader(hdrBuf)
	if err != nil {
		return "", err
	}
	body := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if err := conn.Receive(body, 0, int(hdr.Length)); err != nil {
			return "", fmt.Errorf("cluster: info response from %s: %w", node.Name, err)
		}
	}

	line := strings.TrimSuffix(string(body), "\n")
	name, value, ok := strings.Cut(line, "\t")
	if !ok || name != ic.Name {
		return "", fmt.Errorf("cluster: malformed info response from %s: %q", node.Name, line)
	}
	return value, nil
}
