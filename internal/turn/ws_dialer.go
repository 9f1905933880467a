package turn

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

// dialTimeout bounds the websocket handshake so a wedged bridge hands
// control back to the reconnect loop instead of blocking it.
const dialTimeout = 15 * time.Second

// RealDialer opens bridge connections with coder/websocket.
type RealDialer struct{}

func (RealDialer) Dial(ctx context.Context, url string) (Socket, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}
	return &realSocket{conn: conn}, nil
}

type realSocket struct {
	conn *websocket.Conn
}

// ReadText rejects binary frames; the bridge protocol is JSON text only.
func (s *realSocket) ReadText(ctx context.Context) (string, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", fmt.Errorf("unexpected %v frame from bridge", typ)
	}
	return string(data), nil
}

func (s *realSocket) WriteText(ctx context.Context, text string) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (s *realSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
