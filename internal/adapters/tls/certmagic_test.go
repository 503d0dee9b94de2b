package tls

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewServerValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"no domains", Config{Enabled: true, Email: "ops@example.com"}, true},
		{"no email", Config{Enabled: true, Domains: []string{"geo.example.com"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(tt.cfg, http.NotFoundHandler(), logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewServer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDNSConfigUsesDNSChallenge(t *testing.T) {
	if (DNSConfig{}).UsesDNSChallenge() {
		t.Error("empty DNS config should not use DNS-01")
	}
	if !(DNSConfig{SubscriptionID: "sub", ResourceGroupName: "rg"}).UsesDNSChallenge() {
		t.Error("configured DNS should use DNS-01")
	}
}

func TestPlainServerShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewServer(Config{}, http.NotFoundHandler(), logger)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before start error = %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(addr) }()

	// Wait for the listener.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("tcp", addr); err == nil {
			_ = conn.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("ListenAndServe() error = %v, want ErrServerClosed", err)
	}
}
