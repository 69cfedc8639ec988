package server

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat/internal/gateway"
)

func TestNewClient(t *testing.T) {
	identity := gateway.Identity{UserID: "u1", Username: "alice"}
	client := NewClient(nil, nil, identity, "127.0.0.1:1234")

	if client.ID() == "" {
		t.Error("client id should be assigned")
	}
	if client.Identity() != identity {
		t.Errorf("Identity() = %+v, want %+v", client.Identity(), identity)
	}
	if cap(client.send) != CurrentConfig().SendBufferSize {
		t.Errorf("send buffer = %d, want %d", cap(client.send), CurrentConfig().SendBufferSize)
	}

	other := NewClient(nil, nil, identity, "127.0.0.1:1234")
	if other.ID() == client.ID() {
		t.Error("client ids should be unique")
	}
}

func TestClientImplementsConn(t *testing.T) {
	var _ gateway.Conn = (*Client)(nil)
}

func TestClientSendQueuesFrames(t *testing.T) {
	client := NewClient(nil, nil, gateway.Identity{UserID: "u1", Username: "alice"}, "test")

	if err := client.Send([]byte("one")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case msg := <-client.GetSendChan():
		if string(msg) != "one" {
			t.Errorf("got %q, want one", msg)
		}
	default:
		t.Fatal("expected a queued frame")
	}
}

func TestClientSendBufferFull(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{SendBufferSize: 2})

	client := NewClient(nil, nil, gateway.Identity{UserID: "u1", Username: "alice"}, "test")

	for i := 0; i < 2; i++ {
		if err := client.Send([]byte("x")); err != nil {
			t.Fatalf("Send() %d error = %v", i, err)
		}
	}
	if err := client.Send([]byte("overflow")); !errors.Is(err, ErrSendBufferFull) {
		t.Errorf("Send() error = %v, want ErrSendBufferFull", err)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	client := NewClient(nil, nil, gateway.Identity{UserID: "u1", Username: "alice"}, "test")

	if !client.close() {
		t.Fatal("first close should report true")
	}
	if client.close() {
		t.Error("second close should be a no-op")
	}
	if err := client.Send([]byte("late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send() error = %v, want ErrConnectionClosed", err)
	}
	if _, ok := <-client.GetSendChan(); ok {
		t.Error("send channel should be closed")
	}
}

func TestClientHandleReadError(t *testing.T) {
	client := NewClient(nil, nil, gateway.Identity{UserID: "u1", Username: "alice"}, "test")

	tests := []struct {
		name      string
		err       error
		wantBreak bool
	}{
		{name: "no error", err: nil, wantBreak: false},
		{name: "read limit", err: websocket.ErrReadLimit, wantBreak: true},
		{name: "normal close", err: &websocket.CloseError{Code: websocket.CloseNormalClosure}, wantBreak: true},
		{name: "message too big", err: &websocket.CloseError{Code: websocket.CloseMessageTooBig}, wantBreak: true},
		{name: "eof", err: io.EOF, wantBreak: true},
		{name: "closed network connection", err: errors.New("use of closed network connection"), wantBreak: true},
		{name: "other", err: errors.New("boom"), wantBreak: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.handleReadError(tt.err); got != tt.wantBreak {
				t.Errorf("handleReadError(%v) = %v, want %v", tt.err, got, tt.wantBreak)
			}
		})
	}
}

func TestClientCheckRateLimit(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{RateLimit: RateLimitConfig{Burst: 2, RefillInterval: time.Hour}})

	client := NewClient(nil, nil, gateway.Identity{UserID: "u1", Username: "alice"}, "test")

	if !client.checkRateLimit() || !client.checkRateLimit() {
		t.Fatal("burst should be allowed")
	}
	if client.checkRateLimit() {
		t.Error("third frame should be rate limited")
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: true},
		{err: errors.New("write: broken pipe"), want: true},
		{err: errors.New("websocket: close sent"), want: true},
		{err: errors.New("use of closed network connection"), want: true},
		{err: errors.New("connection reset by peer"), want: false},
	}

	for _, tt := range tests {
		if got := isExpectedCloseError(tt.err); got != tt.want {
			t.Errorf("isExpectedCloseError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
