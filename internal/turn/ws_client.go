// Package turn connects the daemon to the chat bridge over a websocket:
// remote-control ops arrive as requests, monitor notifications leave as
// pushed events.
package turn

import (
	"context"
	"errors"
	"io"
	"sync"
)

type Socket interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
	Close() error
}

// WSClient pumps a Socket. Reads are single-threaded through Run; writes
// are serialized so op replies and pushed notifications can interleave
// safely from different goroutines.
type WSClient struct {
	sock    Socket
	writeMu sync.Mutex
	onText  func(string)
}

type onTextSetter interface {
	SetOnText(func(string))
}

func NewWSClient(sock Socket) *WSClient {
	return &WSClient{sock: sock}
}

func (c *WSClient) OnText(fn func(string)) {
	c.onText = fn
	if s, ok := c.sock.(onTextSetter); ok {
		s.SetOnText(fn)
	}
}

// Run reads until the socket or context ends. A clean EOF and cancellation
// report nil; transport failures surface to the caller.
func (c *WSClient) Run(ctx context.Context) error {
	for {
		text, err := c.sock.ReadText(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if c.onText != nil {
			c.onText(text)
		}
	}
}

func (c *WSClient) Send(ctx context.Context, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteText(ctx, text)
}

func (c *WSClient) Close() error {
	return c.sock.Close()
}

// FakeSocket scripts a bridge connection for tests: EmitText feeds inbound
// frames, Writes observes what the client sent.
type FakeSocket struct {
	readCh chan string

	mu     sync.Mutex
	onText func(string)
	writes []string
}

func NewFakeSocket() *FakeSocket {
	return &FakeSocket{readCh: make(chan string, 8)}
}

func (f *FakeSocket) SetOnText(fn func(string)) {
	f.mu.Lock()
	f.onText = fn
	f.mu.Unlock()
}

func (f *FakeSocket) EmitText(text string) {
	f.mu.Lock()
	fn := f.onText
	f.mu.Unlock()
	if fn != nil {
		fn(text)
		return
	}
	f.readCh <- text
}

func (f *FakeSocket) ReadText(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text, ok := <-f.readCh:
		if !ok {
			return "", io.EOF
		}
		return text, nil
	}
}

func (f *FakeSocket) WriteText(ctx context.Context, text string) error {
	f.mu.Lock()
	f.writes = append(f.writes, text)
	f.mu.Unlock()
	return nil
}

func (f *FakeSocket) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *FakeSocket) Close() error {
	close(f.readCh)
	return nil
}
