package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	"ultidisk/internal/config"
	"ultidisk/internal/diskentry"
	"ultidisk/internal/logging"
)

// FTP defaults.
const (
	DefaultFTPPort      = 21
	DefaultFTPTimeout   = 30 * time.Second
	DefaultMaxConns     = 2
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
)

// FTPConfig configures the device storage source.
type FTPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Timeout      time.Duration
	MaxConns     int
	MaxRetries   int
	RetryBackoff time.Duration
}

// FTPConfigFrom maps the [ftp] config section onto FTPConfig.
func FTPConfigFrom(cfg *config.Config) FTPConfig {
	return FTPConfig{
		Host:       cfg.FTP.Host,
		Port:       cfg.FTP.Port,
		Username:   cfg.FTP.Username,
		Password:   cfg.FTP.Password,
		Timeout:    cfg.FTPTimeout(),
		MaxConns:   cfg.FTP.MaxConns,
		MaxRetries: cfg.FTP.MaxRetries,
	}
}

// FTP lists the device's storage over its FTP service. Listed paths are the
// device's absolute paths, which the REST mount endpoint accepts verbatim.
type FTP struct {
	config   FTPConfig
	logger   *slog.Logger
	connPool chan *ftp.ServerConn

	closeOnce sync.Once
}

// NewFTP builds an FTP source. No connection is made until the first listing.
func NewFTP(cfg FTPConfig, logger *slog.Logger) (*FTP, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("ftp: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultFTPPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultFTPTimeout
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FTP{
		config:   cfg,
		logger:   logging.NewComponentLogger(logger, "ftp"),
		connPool: make(chan *ftp.ServerConn, cfg.MaxConns),
	}, nil
}

func (f *FTP) ID() string {
	return fmt.Sprintf("ftp://%s", f.addr())
}

func (f *FTP) Kind() string {
	return "ftp"
}

func (f *FTP) Location() diskentry.Location {
	return diskentry.LocationUltimate
}

// ListEntries returns the direct children of dir on the device.
func (f *FTP) ListEntries(ctx context.Context, dir string) ([]Entry, error) {
	dir = diskentry.NormalizePath(dir)
	var raw []*ftp.Entry
	err := f.withRetry(ctx, func(conn *ftp.ServerConn) error {
		var err error
		raw, err = conn.List(dir)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ListingError{
			SourceID:   f.ID(),
			SourceType: f.Kind(),
			Platform:   "ultimate",
			Path:       dir,
			Detail:     "ftp list",
			Err:        err,
		}
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		if item == nil || item.Name == "." || item.Name == ".." || item.Name == "" {
			continue
		}
		entry := Entry{
			Name:       item.Name,
			Path:       diskentry.JoinPath(dir, item.Name),
			ModifiedAt: item.Time,
		}
		switch item.Type {
		case ftp.EntryTypeFolder:
			entry.Type = TypeDir
		case ftp.EntryTypeFile:
			entry.Type = TypeFile
			entry.SizeBytes = int64(item.Size) //nolint:gosec // sizes on device storage fit in int64
		default:
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping opens a connection and reports the server's working directory.
func (f *FTP) Ping(ctx context.Context) (string, error) {
	var dir string
	err := f.withRetry(ctx, func(conn *ftp.ServerConn) error {
		var err error
		dir, err = conn.CurrentDir()
		return err
	})
	return dir, err
}

// Close quits every pooled connection.
func (f *FTP) Close() error {
	var errs []error
	f.closeOnce.Do(func() {
		close(f.connPool)
		for conn := range f.connPool {
			if err := conn.Quit(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (f *FTP) addr() string {
	return net.JoinHostPort(f.config.Host, fmt.Sprint(f.config.Port))
}

func (f *FTP) getConnection(ctx context.Context) (*ftp.ServerConn, error) {
	select {
	case conn, ok := <-f.connPool:
		if ok && conn != nil {
			if conn.NoOp() == nil {
				return conn, nil
			}
			_ = conn.Quit()
		}
	default:
	}
	return f.connect(ctx)
}

func (f *FTP) returnConnection(conn *ftp.ServerConn) {
	if conn == nil {
		return
	}
	defer func() {
		// Pool closed underneath us.
		if recover() != nil {
			_ = conn.Quit()
		}
	}()
	select {
	case f.connPool <- conn:
	default:
		if err := conn.Quit(); err != nil {
			f.logger.Debug("ftp quit failed", logging.Error(err))
		}
	}
}

func (f *FTP) withRetry(ctx context.Context, op func(*ftp.ServerConn) error) error {
	var lastErr error
	for attempt := range f.config.MaxRetries {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := f.getConnection(ctx)
		if err != nil {
			lastErr = err
			if !IsTransientError(err) {
				return err
			}
			if !f.sleep(ctx, attempt) {
				return ctx.Err()
			}
			continue
		}

		if err = op(conn); err == nil {
			f.returnConnection(conn)
			return nil
		}

		lastErr = err
		_ = conn.Quit()
		if !IsTransientError(err) {
			return err
		}
		f.logger.Debug("retrying ftp operation",
			logging.Error(err),
			logging.Int("attempt", attempt+1),
			logging.Int("max_retries", f.config.MaxRetries),
		)
		if !f.sleep(ctx, attempt) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("ftp: operation failed after %d attempts: %w", f.config.MaxRetries, lastErr)
}

func (f *FTP) sleep(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(f.config.RetryBackoff * time.Duration(attempt+1))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (f *FTP) connect(ctx context.Context) (*ftp.ServerConn, error) {
	type result struct {
		conn *ftp.ServerConn
		err  error
	}
	done := make(chan result, 1)

	go func() {
		conn, err := ftp.Dial(f.addr(), ftp.DialWithTimeout(f.config.Timeout), ftp.DialWithContext(ctx))
		if err != nil {
			done <- result{err: fmt.Errorf("ftp: connect %s: %w", f.addr(), err)}
			return
		}
		if f.config.Username != "" {
			if err := conn.Login(f.config.Username, f.config.Password); err != nil {
				_ = conn.Quit()
				done <- result{err: fmt.Errorf("ftp: login failed: %w", err)}
				return
			}
		}
		done <- result{conn: conn}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Quit()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		return r.conn, r.err
	}
}

// IsTransientError reports whether err is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if os.IsTimeout(err) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"connection closed",
		"timeout",
		"temporary",
		"broken pipe",
		"no route to host",
		"eof",
		"resource temporarily unavailable",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
