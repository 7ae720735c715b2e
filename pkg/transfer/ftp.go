package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"marsfeed/pkg/auth"
	errs "marsfeed/pkg/errors"
)

// FTPUploader stores files on an FTP server. A connection carries one
// command at a time, so it must not be shared between goroutines.
type FTPUploader struct {
	conn *ftp.ServerConn
}

// DialFTP connects and logs in with creds. port is used when the host
// carries none.
func DialFTP(ctx context.Context, creds *auth.Credentials, port int, timeout time.Duration) (*FTPUploader, error) {
	addr := creds.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(port))
	}

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "connect %s: %v", addr, err)
	}
	if err := conn.Login(creds.Username, creds.Password); err != nil {
		_ = conn.Quit()
		return nil, errs.New(errs.ErrorTypeAuth, 530, "login as %s: %v", creds.Username, err)
	}
	return &FTPUploader{conn: conn}, nil
}

func (u *FTPUploader) Store(ctx context.Context, remotePath string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.conn.Stor(remotePath, r); err != nil {
		return errs.New(errs.ErrorTypeNetwork, 0, "store %s: %v", remotePath, err)
	}
	return nil
}

func (u *FTPUploader) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := u.conn.NameList(dir)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "list %s: %v", dir, err)
	}
	return names, nil
}

func (u *FTPUploader) Close() error {
	if err := u.conn.Quit(); err != nil {
		return fmt.Errorf("ftp quit: %w", err)
	}
	return nil
}
