// Package authmsg builds, parses and validates the message a wallet signs to log in.
//
// Two encodings carry the same fields. The human encoding wraps a JSON block in
// readable framing text so wallets can show it to the user; the structured
// encoding is a bare JSON object tagged with a type and version. Both decode
// to a Message and go through the same Validate rules.
package authmsg

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cura-labs/cura/core"
	"github.com/cura-labs/cura/ports"
)

const (
	beginMarker = "-----BEGIN CURA AUTH MESSAGE-----"
	endMarker   = "-----END CURA AUTH MESSAGE-----"

	// StructuredType tags the machine encoding
	StructuredType = "cura-auth"

	// StructuredVersion is the only machine encoding version understood
	StructuredVersion = 1

	// DefaultClockSkewTolerance is how far in the future issuedAt may be
	DefaultClockSkewTolerance = 30 * time.Second

	// DefaultStatement is the human framing shown by the wallet
	DefaultStatement = "Sign this message to prove you own this wallet. " +
		"It will not trigger a blockchain transaction or cost any gas."

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Message is the signable challenge. Field order is the wire order.
type Message struct {
	AppName       string `json:"appName"`
	WalletAddress string `json:"walletAddress"`
	Nonce         string `json:"nonce"`
	IssuedAt      string `json:"issuedAt"`
	Domain        string `json:"domain,omitempty"`
	URI           string `json:"uri,omitempty"`
}

type structuredMessage struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Message
}

// FormatTimestamp renders t as an ISO-8601 UTC timestamp with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func (m Message) complete() bool {
	return m.AppName != "" && m.WalletAddress != "" && m.Nonce != "" && m.IssuedAt != ""
}

// Codec encodes messages and validates parsed ones against the clock.
type Codec struct {
	statement string
	skew      time.Duration
	clock     ports.Clock
}

// Option configures a Codec
type Option func(*Codec)

// WithStatement replaces DefaultStatement
func WithStatement(statement string) Option {
	return func(c *Codec) {
		c.statement = statement
	}
}

// WithClockSkewTolerance replaces DefaultClockSkewTolerance
func WithClockSkewTolerance(skew time.Duration) Option {
	return func(c *Codec) {
		if skew >= 0 {
			c.skew = skew
		}
	}
}

// NewCodec creates a message codec
func NewCodec(clock ports.Clock, opts ...Option) *Codec {
	c := &Codec{
		statement: DefaultStatement,
		skew:      DefaultClockSkewTolerance,
		clock:     clock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Build renders the human encoding. Identical messages always render identically.
func (c *Codec) Build(msg Message) string {
	// a struct of strings cannot fail to marshal
	payload, _ := json.Marshal(msg)

	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your wallet.\n\n", msg.AppName)
	if c.statement != "" {
		b.WriteString(c.statement)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Wallet: %s\nNonce: %s\nIssued At: %s\n\n", msg.WalletAddress, msg.Nonce, msg.IssuedAt)
	b.WriteString(beginMarker)
	b.WriteByte('\n')
	b.Write(payload)
	b.WriteByte('\n')
	b.WriteString(endMarker)
	return b.String()
}

// Parse extracts the message from the human encoding.
// The block is always the last three lines: begin marker, one line of JSON, end marker.
// Marker text echoed in the framing or inside field values is therefore never mistaken for the block.
func (c *Codec) Parse(text string) (Message, error) {
	head, ok := strings.CutSuffix(strings.TrimRight(text, " \t\r\n"), endMarker)
	if !ok {
		return Message{}, fmt.Errorf("missing end marker: %w", core.ErrMalformedMessage)
	}

	head = strings.TrimRight(head, " \t\r\n")
	nl := strings.LastIndexByte(head, '\n')
	if nl < 0 || !strings.HasSuffix(strings.TrimRight(head[:nl], " \t\r"), beginMarker) {
		return Message{}, fmt.Errorf("missing begin marker: %w", core.ErrMalformedMessage)
	}
	body := head[nl+1:]

	var msg Message
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &msg); err != nil {
		return Message{}, fmt.Errorf("decode block: %v: %w", err, core.ErrMalformedMessage)
	}
	if !msg.complete() {
		return Message{}, fmt.Errorf("missing required field: %w", core.ErrMalformedMessage)
	}
	return msg, nil
}

// BuildStructured renders the machine encoding
func (c *Codec) BuildStructured(msg Message) string {
	payload, _ := json.Marshal(structuredMessage{
		Type:    StructuredType,
		Version: StructuredVersion,
		Message: msg,
	})
	return string(payload)
}

// ParseStructured extracts the message from the machine encoding
func (c *Codec) ParseStructured(text string) (Message, error) {
	var s structuredMessage
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return Message{}, fmt.Errorf("decode structured message: %v: %w", err, core.ErrMalformedMessage)
	}
	if s.Type != StructuredType || s.Version != StructuredVersion {
		return Message{}, fmt.Errorf("unsupported type %q version %d: %w", s.Type, s.Version, core.ErrMalformedMessage)
	}
	if !s.Message.complete() {
		return Message{}, fmt.Errorf("missing required field: %w", core.ErrMalformedMessage)
	}
	return s.Message, nil
}

// Decode accepts either encoding
func (c *Codec) Decode(text string) (Message, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		return c.ParseStructured(trimmed)
	}
	return c.Parse(text)
}
