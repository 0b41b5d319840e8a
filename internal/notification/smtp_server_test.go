package notification_test

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testServerMode selects how the local ESMTP server secures sessions.
type testServerMode int

const (
	modePlain testServerMode = iota
	modeSTARTTLS
	modeImplicitTLS
)

// sessionEnd describes how a session on the test server finished.
type sessionEnd struct {
	quit bool
	err  error
	at   time.Time
}

// testSMTPServer is a minimal ESMTP server on 127.0.0.1. It accepts any
// credentials and records every command and message it receives.
type testSMTPServer struct {
	port int
	mode testServerMode
	// silent servers complete the TLS handshake (if any) and never greet.
	silent bool
	tls    *tls.Config

	mu       sync.Mutex
	commands []string
	messages []string

	ended chan sessionEnd
}

// newTestCertificate returns a self-signed certificate for 127.0.0.1 and a
// pool that trusts it.
func newTestCertificate(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

// startTestSMTPServer serves every connection until the test ends. The
// returned pool trusts the server certificate.
func startTestSMTPServer(t *testing.T, mode testServerMode, silent bool) (*testSMTPServer, *x509.CertPool) {
	t.Helper()
	cert, pool := newTestCertificate(t)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testSMTPServer{
		port:   ln.Addr().(*net.TCPAddr).Port,
		mode:   mode,
		silent: silent,
		tls:    &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
		ended:  make(chan sessionEnd, 8),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.ended <- s.serve(conn)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})
	return s, pool
}

func (s *testSMTPServer) serve(conn net.Conn) sessionEnd {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	secure := false
	if s.mode == modeImplicitTLS {
		tc := tls.Server(conn, s.tls)
		if err := tc.Handshake(); err != nil {
			return sessionEnd{err: err, at: time.Now()}
		}
		conn, secure = tc, true
	}

	r := bufio.NewReader(conn)
	if s.silent {
		_, err := r.ReadByte()
		return sessionEnd{err: err, at: time.Now()}
	}

	reply := func(lines ...string) {
		_, _ = conn.Write([]byte(strings.Join(lines, "\r\n") + "\r\n"))
	}
	reply("220 localhost ESMTP test")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return sessionEnd{err: err, at: time.Now()}
		}
		cmd := strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(cmd, " ", 2)[0])
		s.record(strings.ToUpper(cmd))

		switch verb {
		case "EHLO", "HELO":
			ext := []string{"250-localhost"}
			if s.mode == modeSTARTTLS && !secure {
				ext = append(ext, "250-STARTTLS")
			}
			reply(append(ext, "250 AUTH PLAIN")...)
		case "STARTTLS":
			reply("220 ready to start TLS")
			tc := tls.Server(conn, s.tls)
			if err := tc.Handshake(); err != nil {
				return sessionEnd{err: err, at: time.Now()}
			}
			conn, secure = tc, true
			r = bufio.NewReader(conn)
		case "AUTH":
			reply("235 2.7.0 Authentication successful")
		case "DATA":
			reply("354 end data with <CR><LF>.<CR><LF>")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return sessionEnd{err: err, at: time.Now()}
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			s.mu.Lock()
			s.messages = append(s.messages, body.String())
			s.mu.Unlock()
			reply("250 2.0.0 queued")
		case "QUIT":
			reply("221 bye")
			return sessionEnd{quit: true, at: time.Now()}
		default:
			reply("250 ok")
		}
	}
}

func (s *testSMTPServer) record(cmd string) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
}

func (s *testSMTPServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *testSMTPServer) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// hasCommand reports whether any recorded command starts with prefix.
func (s *testSMTPServer) hasCommand(prefix string) bool {
	for _, c := range s.Commands() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// waitEnd returns how the next session ended, failing after timeout.
func (s *testSMTPServer) waitEnd(t *testing.T, timeout time.Duration) sessionEnd {
	t.Helper()
	select {
	case end := <-s.ended:
		return end
	case <-time.After(timeout):
		t.Fatalf("session still open after %s", timeout)
		return sessionEnd{}
	}
}
