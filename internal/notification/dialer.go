package notification

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// SMTPTimeouts bounds the stages of one SMTP transport-profile attempt.
type SMTPTimeouts struct {
	// Connect bounds TCP connect (and the TLS handshake for implicit TLS).
	Connect time.Duration
	// Greeting bounds the wait for the server's first response.
	Greeting time.Duration
	// Socket bounds every later read or write.
	Socket time.Duration
}

// DefaultSMTPTimeouts returns 12s connect, 8s greeting and 20s socket timeouts.
func DefaultSMTPTimeouts() SMTPTimeouts {
	return SMTPTimeouts{
		Connect:  12 * time.Second,
		Greeting: 8 * time.Second,
		Socket:   20 * time.Second,
	}
}

// minTLSVersion is the lowest protocol version accepted on any SMTP path.
const minTLSVersion = tls.VersionTLS12

func smtpTLSConfig(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: minTLSVersion}
}

// profileDialer opens the connection for one profile attempt. It forces the
// configured address family, performs implicit TLS itself and applies the
// greeting/socket deadlines to the raw connection. Every connection it opens
// is closed by Close.
type profileDialer struct {
	network  string
	timeouts SMTPTimeouts
	implicit bool
	tls      *tls.Config
	// hardDeadline caps every I/O deadline at the end of the attempt.
	hardDeadline time.Time

	mu    sync.Mutex
	conns []net.Conn
}

// DialContext matches go-mail's DialContextFunc. The network argument is
// ignored in favour of the configured address family.
func (d *profileDialer) DialContext(ctx context.Context, _ string, addr string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.timeouts.Connect}
	raw, err := nd.DialContext(ctx, d.network, addr)
	if err != nil {
		return nil, err
	}
	d.track(raw)
	conn := &deadlineConn{
		Conn:     raw,
		greeting: d.timeouts.Greeting,
		socket:   d.timeouts.Socket,
		hard:     d.hardDeadline,
	}
	if !d.implicit {
		return conn, nil
	}

	tlsConn := tls.Client(conn, d.tls)
	hsCtx, cancel := context.WithTimeout(ctx, d.timeouts.Connect)
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	// The handshake wrote to the socket; the SMTP greeting is still pending.
	conn.greeted.Store(false)
	return tlsConn, nil
}

func (d *profileDialer) track(c net.Conn) {
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
}

// Close closes every connection opened by the dialer. go-mail does not close
// the connection when the session fails after connecting.
func (d *profileDialer) Close() error {
	d.mu.Lock()
	conns := d.conns
	d.conns = nil
	d.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

// deadlineConn refreshes the connection deadline before every read and
// write. Reads wait at most the greeting timeout until the client first
// writes (EHLO follows the greeting), later operations get the socket
// timeout; none may run past hard.
type deadlineConn struct {
	net.Conn
	greeting time.Duration
	socket   time.Duration
	hard     time.Time
	// greeted is set by the first write.
	greeted atomic.Bool
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	timeout := c.socket
	if !c.greeted.Load() {
		timeout = c.greeting
	}
	if err := c.Conn.SetReadDeadline(c.deadline(timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	c.greeted.Store(true)
	if err := c.Conn.SetWriteDeadline(c.deadline(c.socket)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

func (c *deadlineConn) deadline(timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if !c.hard.IsZero() && c.hard.Before(d) {
		return c.hard
	}
	return d
}
