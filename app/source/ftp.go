package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

type FTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Path     string
	Timeout  time.Duration
}

// FTPSource lists one remote directory over plain FTP. The control
// connection opened by List is reused by the candidates' Fetch until Close.
type FTPSource struct {
	cfg  FTPConfig
	now  func() time.Time
	conn *ftp.ServerConn
}

func NewFTPSource(cfg FTPConfig) *FTPSource {
	return &FTPSource{cfg: cfg, now: time.Now}
}

func (s *FTPSource) List(ctx context.Context) ([]Candidate, error) {
	if err := s.Close(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.cfg.Timeout),
		ftp.DialWithDisabledMLSD(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrSourceUnavailable, addr, err)
	}

	// Login also switches the session to binary (TYPE I).
	if err := conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: failed to login to %s: %v", ErrSourceUnavailable, addr, err)
	}

	if err := conn.ChangeDir(s.cfg.Path); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: failed to change directory to %s: %v", ErrSourceUnavailable, s.cfg.Path, err)
	}

	entries, err := conn.List("")
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: failed to list %s: %v", ErrSourceUnavailable, s.cfg.Path, err)
	}

	s.conn = conn
	return listingCandidates(entries, s.now(), s.retr), nil
}

func (s *FTPSource) retr(name string) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.conn == nil {
			return nil, fmt.Errorf("ftp connection is closed")
		}

		resp, err := s.conn.Retr(name)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve %s: %w", name, err)
		}
		defer resp.Close()

		data, err := io.ReadAll(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, nil
	}
}

func (s *FTPSource) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close ftp connection: %w", err)
	}
	return nil
}

func listingCandidates(entries []*ftp.Entry, now time.Time, fetch func(name string) FetchFunc) []Candidate {
	candidates := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Type != ftp.EntryTypeFile {
			continue
		}
		modifiedAt := resolveListingTime(entry.Time, now)
		candidates = append(candidates, NewCandidate(entry.Name, modifiedAt, fetch(entry.Name)))
	}
	sortCandidates(candidates)
	return candidates
}

// resolveListingTime fixes the year of a LIST timestamp. Recent entries only
// carry "Mon DD HH:MM" and get the current year substituted; when that lands
// on a date after today the entry belongs to the previous year.
func resolveListingTime(t, now time.Time) time.Time {
	t = t.UTC()
	now = now.UTC()

	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	entryDay := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)

	if entryDay.After(today) {
		return t.AddDate(-1, 0, 0)
	}
	return t
}
