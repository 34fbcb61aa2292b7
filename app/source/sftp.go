package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SFTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Path       string
	KnownHosts string
	Timeout    time.Duration
}

// SFTPSource lists one remote directory over SSH. Modification times come
// from the server's file attributes.
type SFTPSource struct {
	cfg    SFTPConfig
	dial   func(ctx context.Context) (*sftp.Client, io.Closer, error)
	client *sftp.Client
	closer io.Closer
}

func NewSFTPSource(cfg SFTPConfig) *SFTPSource {
	s := &SFTPSource{cfg: cfg}
	s.dial = s.dialSSH
	return s
}

func (s *SFTPSource) dialSSH(ctx context.Context) (*sftp.Client, io.Closer, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if s.cfg.KnownHosts != "" {
		cb, err := knownhosts.New(s.cfg.KnownHosts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load known hosts %s: %w", s.cfg.KnownHosts, err)
		}
		hostKeyCallback = cb
	}

	sshConfig := &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(s.cfg.Password)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.cfg.Timeout,
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshConfig)
	if err != nil {
		netConn.Close()
		return nil, nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("failed to start sftp session: %w", err)
	}

	return client, sshClient, nil
}

func (s *SFTPSource) List(ctx context.Context) ([]Candidate, error) {
	if err := s.Close(); err != nil {
		return nil, err
	}

	client, closer, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	infos, err := client.ReadDir(s.cfg.Path)
	if err != nil {
		client.Close()
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("%w: failed to list %s: %v", ErrSourceUnavailable, s.cfg.Path, err)
	}

	s.client = client
	s.closer = closer

	candidates := make([]Candidate, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		remotePath := path.Join(s.cfg.Path, fi.Name())
		candidates = append(candidates, NewCandidate(fi.Name(), fi.ModTime(), s.read(remotePath)))
	}

	sortCandidates(candidates)
	return candidates, nil
}

func (s *SFTPSource) read(remotePath string) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.client == nil {
			return nil, fmt.Errorf("sftp session is closed")
		}

		f, err := s.client.Open(remotePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", remotePath, err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", remotePath, err)
		}
		return data, nil
	}
}

func (s *SFTPSource) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	s.client = nil
	s.closer = nil
	if err != nil {
		return fmt.Errorf("failed to close sftp session: %w", err)
	}
	return nil
}
