// Package auth loads the opaque credential presented when opening a channel.
//
// The token is issued elsewhere; this package only locates it (inline config
// value, a secrets file, or the environment) and keeps it out of logs.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// TokenEnv is consulted when neither an inline token nor a token file is set.
const TokenEnv = "NOTIFY_TOKEN"

// ErrNoToken is returned when no credential source yields a token.
var ErrNoToken = errors.New("no credential token configured")

// Token is an opaque credential. It prints redacted.
type Token string

// String returns a redacted form safe for logs.
func (t Token) String() string {
	return Redact(string(t))
}

// LogValue implements slog.LogValuer.
func (t Token) LogValue() slog.Value {
	return slog.StringValue(t.String())
}

// Reveal returns the raw credential for the connection URL.
func (t Token) Reveal() string {
	return string(t)
}

// LoadToken resolves the credential: inline value first, then the file at
// path, then the TokenEnv environment variable.
func LoadToken(inline, path string) (Token, error) {
	if tok := strings.TrimSpace(inline); tok != "" {
		return Token(tok), nil
	}

	if path != "" {
		tok, err := ReadTokenFile(path)
		if err != nil {
			return "", fmt.Errorf("load token: %w", err)
		}
		return tok, nil
	}

	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return Token(tok), nil
	}

	return "", ErrNoToken
}

// ReadTokenFile reads a token from a file, ignoring surrounding whitespace.
func ReadTokenFile(path string) (Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return Token(tok), nil
}

// Redact keeps the first four characters of a credential.
func Redact(tok string) string {
	switch {
	case tok == "":
		return ""
	case len(tok) <= 8:
		return "****"
	default:
		return tok[:4] + "****"
	}
}
