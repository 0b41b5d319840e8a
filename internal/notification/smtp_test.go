package notification_test

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/shaharia-lab/inquiry-dispatch/internal/notification"
)

func testSMTPConfig() *notification.SMTPConfig {
	return &notification.SMTPConfig{
		Host:      "smtp.example.com",
		Username:  "user",
		Password:  "secret",
		From:      "web@shop.com",
		Recipient: "ops@shop.com",
		Network:   "tcp4",
		Profiles:  notification.DefaultProfiles(),
	}
}

// fakeMailClient records sent messages and fails according to err.
type fakeMailClient struct {
	err  error
	sent []*mail.Msg
}

func (f *fakeMailClient) DialWithContext(context.Context) error { return f.err }

func (f *fakeMailClient) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func (f *fakeMailClient) Close() error { return nil }

// fakeFactory hands out one client per port and records the attempt order.
type fakeFactory struct {
	mu      sync.Mutex
	clients map[int]*fakeMailClient
	ports   []int
}

func newFakeFactory(errs map[int]error) *fakeFactory {
	f := &fakeFactory{clients: map[int]*fakeMailClient{}}
	for _, port := range []int{587, 465} {
		f.clients[port] = &fakeMailClient{err: errs[port]}
	}
	return f
}

func (f *fakeFactory) build(_ *notification.SMTPConfig, p notification.TransportProfile, _ time.Time) (notification.MailClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ports = append(f.ports, p.Port)
	return f.clients[p.Port], nil
}

func TestSMTPChannel_Send_FirstProfileSucceeds(t *testing.T) {
	ff := newFakeFactory(nil)
	ch := notification.NewSMTPChannel(notification.WithClientFactory(ff.build))

	out, err := ch.Send(context.Background(), testSMTPConfig(), &notification.Request{
		From:    "Jane Doe <jane@x.com>",
		Subject: "Consulta",
		HTML:    "<p>hola</p>",
		Text:    "hola",
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "smtp:587", out.Channel)
	assert.NotEmpty(t, out.MessageID)
	assert.Equal(t, []int{587}, ff.ports)

	require.Len(t, ff.clients[587].sent, 1)
	msg := ff.clients[587].sent[0]
	assert.Equal(t, []string{`"Jane Doe" <web@shop.com>`}, msg.GetFromString())
	assert.Equal(t, []string{"<ops@shop.com>"}, msg.GetToString())
	assert.Equal(t, []string{"Consulta"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Equal(t, []string{"<jane@x.com>"}, msg.GetAddrHeaderString(mail.HeaderReplyTo))
}

func TestSMTPChannel_Send_FallsBackTo465(t *testing.T) {
	ff := newFakeFactory(map[int]error{587: errors.New("dial tcp4 1.2.3.4:587: connect: connection refused")})
	ch := notification.NewSMTPChannel(notification.WithClientFactory(ff.build))

	out, err := ch.Send(context.Background(), testSMTPConfig(), &notification.Request{Text: "hola"}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "smtp:465", out.Channel)
	assert.NotEmpty(t, out.MessageID)
	assert.Equal(t, []int{587, 465}, ff.ports)
}

func TestSMTPChannel_Send_AllProfilesFail_LastErrorWins(t *testing.T) {
	ff := newFakeFactory(map[int]error{
		587: errors.New("587 handshake failed"),
		465: errors.New("465 auth failed"),
	})
	ch := notification.NewSMTPChannel(notification.WithClientFactory(ff.build))

	_, err := ch.Send(context.Background(), testSMTPConfig(), &notification.Request{Text: "hola"}, time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTransportFailure)
	assert.Contains(t, err.Error(), "465 auth failed")
	assert.NotContains(t, err.Error(), "587 handshake failed")

	de, ok := notification.AsDispatchError(err)
	require.True(t, ok)
	assert.Equal(t, "smtp:465", de.Channel)
	require.Len(t, de.Attempts, 2)
	assert.Equal(t, "smtp:587", de.Attempts[0].Channel)
	assert.Contains(t, de.Attempts[0].Error, "587 handshake failed")
	assert.Equal(t, "smtp:465", de.Attempts[1].Channel)
}

func TestSMTPChannel_Send_ProfilesWithoutConfig(t *testing.T) {
	ch := notification.NewSMTPChannel()

	_, err := ch.Send(context.Background(), nil, &notification.Request{}, time.Second)
	assert.ErrorIs(t, err, notification.ErrUnconfigured)

	cfg := testSMTPConfig()
	cfg.Profiles = nil
	_, err = ch.Send(context.Background(), cfg, &notification.Request{}, time.Second)
	assert.ErrorIs(t, err, notification.ErrUnconfigured)
}

func TestSMTPChannel_Send_PlaceholderBody(t *testing.T) {
	ff := newFakeFactory(nil)
	ch := notification.NewSMTPChannel(notification.WithClientFactory(ff.build))

	_, err := ch.Send(context.Background(), testSMTPConfig(), &notification.Request{}, time.Second)
	require.NoError(t, err)

	var buf strings.Builder
	_, err = ff.clients[587].sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(sin contenido)")
	assert.Contains(t, buf.String(), "Subject: Nueva consulta")
}

func TestSMTPChannel_Verify(t *testing.T) {
	ff := newFakeFactory(map[int]error{587: errors.New("no STARTTLS")})
	ch := notification.NewSMTPChannel(notification.WithClientFactory(ff.build))

	channel, err := ch.Verify(context.Background(), testSMTPConfig(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "smtp:465", channel)

	ff = newFakeFactory(map[int]error{587: errors.New("a"), 465: errors.New("b")})
	ch = notification.NewSMTPChannel(notification.WithClientFactory(ff.build))
	_, err = ch.Verify(context.Background(), testSMTPConfig(), time.Second)
	assert.ErrorIs(t, err, notification.ErrTransportFailure)
}

// startSilentServer accepts connections and never sends a greeting.
func startSilentServer(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	done := make(chan struct{})
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
				defer conn.Close()
				select {
				case <-done:
				case <-time.After(5 * time.Second):
				}
			}()
		}
	}()
	t.Cleanup(func() {
		close(done)
		_ = ln.Close()
		wg.Wait()
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func TestSMTPChannel_Send_GreetingTimeout(t *testing.T) {
	port := startSilentServer(t)
	cfg := testSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Profiles = []notification.TransportProfile{{Port: port, Mode: notification.TLSModeSTARTTLS}}

	ch := notification.NewSMTPChannel(notification.WithSMTPTimeouts(notification.SMTPTimeouts{
		Connect:  time.Second,
		Greeting: 100 * time.Millisecond,
		Socket:   time.Second,
	}))

	start := time.Now()
	_, err := ch.Send(context.Background(), cfg, &notification.Request{Text: "hola"}, 3*time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMTPChannel_Send_RefusesPlaintextServer(t *testing.T) {
	srv, pool := startTestSMTPServer(t, modePlain, false)
	cfg := localSMTPConfig(srv.port, notification.TLSModeSTARTTLS)

	start := time.Now()
	_, err := newLocalSMTPChannel(pool).Send(context.Background(), cfg, &notification.Request{Text: "hola"}, 3*time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTransportFailure)
	assert.False(t, srv.hasCommand("AUTH"), "credentials sent over plaintext")
	assert.False(t, srv.hasCommand("MAIL"), "message sent over plaintext")

	// The failed session must not hold the socket open.
	end := srv.waitEnd(t, time.Second)
	assert.False(t, isTimeoutErr(end.err), "server read ended by timeout: %v", end.err)
	assert.Less(t, end.at.Sub(start), 2*time.Second)
}

func TestSMTPChannel_Send_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := testSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Profiles = []notification.TransportProfile{
		{Port: port, Mode: notification.TLSModeSTARTTLS},
		{Port: port, Mode: notification.TLSModeImplicit},
	}

	_, err = notification.NewSMTPChannel().Send(context.Background(), cfg, &notification.Request{Text: "hola"}, 2*time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTransportFailure)
	de, _ := notification.AsDispatchError(err)
	assert.Len(t, de.Attempts, 2)
}

// localSMTPConfig points a single profile at the local test server.
func localSMTPConfig(port int, mode notification.TLSMode) *notification.SMTPConfig {
	cfg := testSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Profiles = []notification.TransportProfile{{Port: port, Mode: mode}}
	return cfg
}

func newLocalSMTPChannel(pool *x509.CertPool) *notification.SMTPChannel {
	return notification.NewSMTPChannel(
		notification.WithRootCAs(pool),
		notification.WithSMTPTimeouts(notification.SMTPTimeouts{
			Connect:  time.Second,
			Greeting: time.Second,
			Socket:   time.Second,
		}),
	)
}

func isTimeoutErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func TestSMTPChannel_Send_OverTLS(t *testing.T) {
	tests := []struct {
		name string
		mode testServerMode
		tls  notification.TLSMode
	}{
		{"starttls", modeSTARTTLS, notification.TLSModeSTARTTLS},
		{"implicit tls", modeImplicitTLS, notification.TLSModeImplicit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, pool := startTestSMTPServer(t, tt.mode, false)
			cfg := localSMTPConfig(srv.port, tt.tls)

			out, err := newLocalSMTPChannel(pool).Send(context.Background(), cfg, &notification.Request{
				From:    "Jane Doe <jane@x.com>",
				Subject: "Consulta",
				HTML:    "<p>hola</p>",
				Text:    "hola",
			}, 3*time.Second)

			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("smtp:%d", srv.port), out.Channel)
			assert.NotEmpty(t, out.MessageID)

			assert.Equal(t, tt.mode == modeSTARTTLS, srv.hasCommand("STARTTLS"))
			assert.True(t, srv.hasCommand("AUTH PLAIN"))
			assert.True(t, srv.hasCommand("MAIL FROM:<WEB@SHOP.COM>"))
			assert.True(t, srv.hasCommand("RCPT TO:<OPS@SHOP.COM>"))

			msgs := srv.Messages()
			require.Len(t, msgs, 1)
			assert.Contains(t, msgs[0], "Subject: Consulta")
			assert.Contains(t, msgs[0], "Reply-To: <jane@x.com>")
			assert.Contains(t, msgs[0], out.MessageID)

			end := srv.waitEnd(t, time.Second)
			assert.True(t, end.quit)
		})
	}
}

func TestSMTPChannel_Verify_OverTLS(t *testing.T) {
	tests := []struct {
		name string
		mode testServerMode
		tls  notification.TLSMode
	}{
		{"starttls", modeSTARTTLS, notification.TLSModeSTARTTLS},
		{"implicit tls", modeImplicitTLS, notification.TLSModeImplicit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, pool := startTestSMTPServer(t, tt.mode, false)
			cfg := localSMTPConfig(srv.port, tt.tls)

			channel, err := newLocalSMTPChannel(pool).Verify(context.Background(), cfg, 3*time.Second)

			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("smtp:%d", srv.port), channel)
			assert.True(t, srv.hasCommand("AUTH PLAIN"))
			assert.False(t, srv.hasCommand("MAIL"))
			assert.True(t, srv.waitEnd(t, time.Second).quit)
		})
	}
}

func TestSMTPChannel_Send_UntrustedCertificate(t *testing.T) {
	srv, _ := startTestSMTPServer(t, modeImplicitTLS, false)
	cfg := localSMTPConfig(srv.port, notification.TLSModeImplicit)

	_, err := newLocalSMTPChannel(nil).Send(context.Background(), cfg, &notification.Request{Text: "hola"}, 3*time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTransportFailure)
	srv.waitEnd(t, time.Second)
	assert.Empty(t, srv.Commands())
}

func TestSMTPChannel_Send_ImplicitTLSGreetingTimeout(t *testing.T) {
	srv, pool := startTestSMTPServer(t, modeImplicitTLS, true)
	cfg := localSMTPConfig(srv.port, notification.TLSModeImplicit)

	ch := notification.NewSMTPChannel(
		notification.WithRootCAs(pool),
		notification.WithSMTPTimeouts(notification.SMTPTimeouts{
			Connect:  time.Second,
			Greeting: 200 * time.Millisecond,
			Socket:   10 * time.Second,
		}),
	)

	start := time.Now()
	_, err := ch.Send(context.Background(), cfg, &notification.Request{Text: "hola"}, 4*time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	srv.waitEnd(t, time.Second)
}
