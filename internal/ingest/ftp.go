package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-gota/gota/dataframe"
	"github.com/jlaffaye/ftp"

	"github.com/lox/energydash/internal/log"
)

const (
	ftpDefaultPort = "21"
	ftpTimeout     = 30 * time.Second
	ftpMaxElapsed  = 2 * time.Minute
)

type ftpFile struct {
	host     string
	path     string
	user     string
	password string
}

func newFTPFile(u *url.URL) *ftpFile {
	host := u.Host
	if u.Port() == "" {
		host = u.Hostname() + ":" + ftpDefaultPort
	}
	f := &ftpFile{host: host, path: u.Path, user: "anonymous", password: "anonymous"}
	if u.User != nil {
		f.user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			f.password = p
		}
	}
	return f
}

// ID leaves credentials out of the identity so they never reach logs or
// metrics labels.
func (f *ftpFile) ID() string     { return "ftp://" + f.host + f.path }
func (f *ftpFile) Scheme() string { return "ftp" }

func (f *ftpFile) Frame(ctx context.Context) (dataframe.DataFrame, error) {
	var body []byte
	operation := func() error {
		b, err := f.fetch(ctx)
		if err != nil {
			if isPermanentFTPError(err) {
				return backoff.Permanent(err)
			}
			log.Ctx(ctx).WarnContext(ctx, "ftp fetch failed, retrying", "source_id", f.ID(), "error", err)
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = ftpMaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		reason := "fetch failed"
		if isNotFound(err) {
			reason = "file not found"
		}
		return dataframe.DataFrame{}, &DataSourceError{Source: f.ID(), Reason: reason, Err: err}
	}
	return readCSV(f.ID(), body)
}

func (f *ftpFile) fetch(ctx context.Context) ([]byte, error) {
	conn, err := ftp.Dial(f.host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpTimeout))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(f.user, f.password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(f.path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// 5xx replies (bad login, file unavailable) will not improve on retry.
func isPermanentFTPError(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}

func isNotFound(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}
