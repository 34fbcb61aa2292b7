package source

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pkg/sftp"
)

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// servePipe starts an in-memory request server backed by handlers and
// returns a client connected to it.
func servePipe(t *testing.T, handlers sftp.Handlers) *sftp.Client {
	t.Helper()

	cr, sw := io.Pipe()
	sr, cw := io.Pipe()

	server := sftp.NewRequestServer(pipeConn{sr, sw}, handlers)
	go server.Serve()
	t.Cleanup(func() { server.Close() })

	client, err := sftp.NewClientPipe(cr, cw)
	if err != nil {
		t.Fatalf("failed to start sftp client: %v", err)
	}
	return client
}

func TestSFTPSourceListAndFetch(t *testing.T) {
	handlers := sftp.InMemHandler()

	setup := servePipe(t, handlers)
	if err := setup.Mkdir("/azertac"); err != nil {
		t.Fatal(err)
	}
	if err := setup.Mkdir("/azertac/archive"); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"news_101.xml": "<news><title>A</title><body>one</body></news>",
		"news_102.xml": "<news><title>B</title><body>two</body></news>",
	}
	for name, content := range files {
		f, err := setup.Create("/azertac/" + name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}
	setup.Close()

	src := NewSFTPSource(SFTPConfig{Path: "/azertac"})
	src.dial = func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		return servePipe(t, handlers), nil, nil
	}
	defer src.Close()

	candidates, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates (directory skipped), got %d", len(candidates))
	}

	for _, c := range candidates {
		expected, ok := files[c.Name]
		if !ok {
			t.Errorf("Unexpected candidate %s", c.Name)
			continue
		}
		data, err := c.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Expected no fetch error for %s, got: %v", c.Name, err)
		}
		if string(data) != expected {
			t.Errorf("Expected content %q for %s, got %q", expected, c.Name, data)
		}
	}
}

func TestSFTPSourceDialFailure(t *testing.T) {
	src := NewSFTPSource(SFTPConfig{Path: "/azertac"})
	src.dial = func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		return nil, nil, errors.New("connection refused")
	}

	_, err := src.List(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("Expected ErrSourceUnavailable, got: %v", err)
	}
}

func TestSFTPSourceMissingDirectory(t *testing.T) {
	handlers := sftp.InMemHandler()

	src := NewSFTPSource(SFTPConfig{Path: "/does-not-exist"})
	src.dial = func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		return servePipe(t, handlers), nil, nil
	}
	defer src.Close()

	_, err := src.List(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("Expected ErrSourceUnavailable, got: %v", err)
	}
}
