package notification

import (
	"fmt"
	"strconv"
)

// TLSMode selects how an SMTP connection is secured.
type TLSMode string

const (
	// TLSModeSTARTTLS connects in clear text and upgrades with STARTTLS.
	TLSModeSTARTTLS TLSMode = "starttls"
	// TLSModeImplicit performs the TLS handshake right after connect.
	TLSModeImplicit TLSMode = "implicit"
)

// TransportProfile is one port/TLS pairing attempted by the SMTP channel.
type TransportProfile struct {
	Port int     `json:"port"`
	Mode TLSMode `json:"mode"`
}

// Channel returns the channel identifier for this profile, e.g. "smtp:587".
func (p TransportProfile) Channel() string {
	return channelSMTP + ":" + strconv.Itoa(p.Port)
}

// sentinelID is the message id reported when the transport has none.
func (p TransportProfile) sentinelID() string {
	return fmt.Sprintf("smtp-%d", p.Port)
}

// DefaultProfiles are tried in order: STARTTLS on 587, then implicit TLS on 465.
func DefaultProfiles() []TransportProfile {
	return []TransportProfile{
		{Port: 587, Mode: TLSModeSTARTTLS},
		{Port: 465, Mode: TLSModeImplicit},
	}
}

// HTTPConfig holds the validated settings for the Brevo HTTP API channel.
type HTTPConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	// Recipient is optional; a request without To then fails as unconfigured.
	Recipient string
}

// SMTPConfig holds the validated settings for the SMTP relay channel.
type SMTPConfig struct {
	Host      string
	Username  string
	Password  string
	From      string
	Recipient string
	// Network is the dial network: "tcp4", "tcp6" or "tcp".
	Network  string
	Profiles []TransportProfile
}

// Channels is the result of configuration resolution. A nil field means the
// channel is not configured.
type Channels struct {
	HTTP *HTTPConfig
	SMTP *SMTPConfig
}

// Any reports whether at least one channel is usable.
func (c Channels) Any() bool {
	return c.HTTP != nil || c.SMTP != nil
}
