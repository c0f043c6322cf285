package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"
	"github.com/lox/miniquoter/internal/locator"
)

// FTPSource is an anonymous FTP location of a station degree-day CSV.
type FTPSource struct {
	Addr string // host:port
	Path string
}

// ParseFTPSource accepts "ftp://host[:port]/path" or "host[:port]/path".
func ParseFTPSource(s string) (*FTPSource, error) {
	if !strings.Contains(s, "://") {
		s = "ftp://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse ftp source: %w", err)
	}
	if u.Scheme != "ftp" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || u.Path == "" || u.Path == "/" {
		return nil, fmt.Errorf("ftp source %q needs a host and a file path", s)
	}
	addr := u.Host
	if u.Port() == "" {
		addr += ":21"
	}
	return &FTPSource{Addr: addr, Path: u.Path}, nil
}

func (f *FTPSource) String() string {
	return "ftp://" + f.Addr + f.Path
}

// Fetch retrieves and parses the station table.
func (f *FTPSource) Fetch(ctx context.Context) (*locator.StationTable, error) {
	var body []byte
	operation := func() error {
		conn, err := ftp.Dial(f.Addr, ftp.DialWithTimeout(30*time.Second), ftp.DialWithContext(ctx))
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		defer conn.Quit()

		if err := conn.Login("anonymous", "anonymous"); err != nil {
			return backoff.Permanent(fmt.Errorf("ftp login: %w", err))
		}

		resp, err := conn.Retr(f.Path)
		if err != nil {
			return fmt.Errorf("ftp retr: %w", err)
		}
		defer resp.Close()

		body, err = io.ReadAll(resp)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	return locator.ParseStations(bytes.NewReader(body))
}
