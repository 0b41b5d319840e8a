package notification_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/inquiry-dispatch/internal/notification"
)

func testHTTPConfig() *notification.HTTPConfig {
	return &notification.HTTPConfig{
		APIKey:      "test-api-key",
		SenderEmail: "web@shop.com",
		SenderName:  "Web",
		Recipient:   "ops@shop.com",
	}
}

// newMockedHTTPChannel returns a channel whose requests go to a fresh mock transport.
func newMockedHTTPChannel(t *testing.T) (*notification.HTTPChannel, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	ch := notification.NewHTTPChannel(notification.WithHTTPClient(&http.Client{Transport: mt}))
	return ch, mt
}

// capturePayload registers a Brevo responder that stores the decoded request body.
func capturePayload(t *testing.T, mt *httpmock.MockTransport, status int, body string) *map[string]any {
	t.Helper()
	got := map[string]any{}
	mt.RegisterResponder(http.MethodPost, notification.BrevoEndpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-api-key", req.Header.Get("api-key"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &got))
			return httpmock.NewStringResponse(status, body), nil
		})
	return &got
}

func TestHTTPChannel_Send_Success(t *testing.T) {
	ch, mt := newMockedHTTPChannel(t)
	payload := capturePayload(t, mt, http.StatusCreated, `{"messageId":"<202601.1@smtp-relay.brevo.com>"}`)

	out, err := ch.Send(context.Background(), testHTTPConfig(), &notification.Request{
		From:    "Jane Doe <jane@x.com>",
		Subject: "Consulta",
		HTML:    "<p>hola</p>",
		Text:    "hola",
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, notification.ChannelHTTPAPI, out.Channel)
	assert.Equal(t, "<202601.1@smtp-relay.brevo.com>", out.MessageID)
	assert.Equal(t, 1, mt.GetTotalCallCount())

	p := *payload
	assert.Equal(t, map[string]any{"email": "web@shop.com", "name": "Web"}, p["sender"])
	assert.Equal(t, []any{map[string]any{"email": "ops@shop.com"}}, p["to"])
	assert.Equal(t, "Consulta", p["subject"])
	assert.Equal(t, "<p>hola</p>", p["htmlContent"])
	assert.Equal(t, "hola", p["textContent"])
	assert.Equal(t, map[string]any{"email": "jane@x.com"}, p["replyTo"])
}

func TestHTTPChannel_Send_PayloadDefaults(t *testing.T) {
	ch, mt := newMockedHTTPChannel(t)
	payload := capturePayload(t, mt, http.StatusOK, ``)

	out, err := ch.Send(context.Background(), testHTTPConfig(), &notification.Request{
		From: "jane@x.com",
		To:   "sales@shop.com",
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "brevo-api", out.MessageID)

	p := *payload
	assert.Equal(t, notification.PlaceholderHTML, p["htmlContent"])
	assert.Equal(t, notification.DefaultSubject, p["subject"])
	assert.Equal(t, "", p["textContent"])
	assert.Equal(t, []any{map[string]any{"email": "sales@shop.com"}}, p["to"])
	assert.NotContains(t, p, "replyTo")
}

func TestHTTPChannel_Send_MessageIDsFallback(t *testing.T) {
	ch, mt := newMockedHTTPChannel(t)
	mt.RegisterResponder(http.MethodPost, notification.BrevoEndpoint,
		httpmock.NewStringResponder(http.StatusAccepted, `{"messageIds":["id-1","id-2"]}`))

	out, err := ch.Send(context.Background(), testHTTPConfig(), &notification.Request{Text: "x"}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "id-1", out.MessageID)
}

func TestHTTPChannel_Send_ProviderRejected(t *testing.T) {
	ch, mt := newMockedHTTPChannel(t)
	longBody := `{"code":"unauthorized","message":"` + strings.Repeat("x", 1000) + `"}`
	mt.RegisterResponder(http.MethodPost, notification.BrevoEndpoint,
		httpmock.NewStringResponder(http.StatusUnauthorized, longBody))

	out, err := ch.Send(context.Background(), testHTTPConfig(), &notification.Request{Text: "x"}, time.Second)

	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, notification.ErrProviderRejected)

	de, ok := notification.AsDispatchError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, de.StatusCode)
	assert.Len(t, []rune(de.Body), 400)
	assert.True(t, strings.HasPrefix(de.Body, `{"code":"unauthorized"`))
}

func TestHTTPChannel_Send_Timeout(t *testing.T) {
	ch, mt := newMockedHTTPChannel(t)
	mt.RegisterResponder(http.MethodPost, notification.BrevoEndpoint,
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	start := time.Now()
	_, err := ch.Send(context.Background(), testHTTPConfig(), &notification.Request{Text: "x"}, 50*time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPChannel_Send_NoRecipient(t *testing.T) {
	ch, mt := newMockedHTTPChannel(t)
	cfg := testHTTPConfig()
	cfg.Recipient = ""

	_, err := ch.Send(context.Background(), cfg, &notification.Request{Text: "x"}, time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrUnconfigured)
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestHTTPChannel_Send_TransportError(t *testing.T) {
	ch, mt := newMockedHTTPChannel(t)
	mt.RegisterResponder(http.MethodPost, notification.BrevoEndpoint,
		httpmock.NewErrorResponder(io.ErrUnexpectedEOF))

	_, err := ch.Send(context.Background(), testHTTPConfig(), &notification.Request{Text: "x"}, time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrTransportFailure)
}
