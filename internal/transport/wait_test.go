package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestWaitForSocket_AlreadyExists(t *testing.T) {
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	if err := WaitForSocket(context.Background(), path); err != nil {
		t.Fatalf("WaitForSocket failed: %v", err)
	}
}

func TestWaitForSocket_AppearsLater(t *testing.T) {
	path := socketPath(t)

	go func() {
		time.Sleep(100 * time.Millisecond)
		ln, err := net.Listen("unix", path)
		if err != nil {
			return
		}
		time.Sleep(time.Second)
		ln.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := WaitForSocket(ctx, path); err != nil {
		t.Fatalf("WaitForSocket failed: %v", err)
	}
}

func TestWaitForSocket_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := WaitForSocket(ctx, socketPath(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
