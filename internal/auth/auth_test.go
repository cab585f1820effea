package auth

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToken(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadToken_Inline(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")

	tok, err := LoadToken("  inline-token \n", writeToken(t, "from-file"))
	require.NoError(t, err)
	assert.Equal(t, "inline-token", tok.Reveal())
}

func TestLoadToken_File(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")

	tok, err := LoadToken("", writeToken(t, "from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok.Reveal())
}

func TestLoadToken_Env(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")

	tok, err := LoadToken("", "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok.Reveal())
}

func TestLoadToken_None(t *testing.T) {
	t.Setenv(TokenEnv, "")

	_, err := LoadToken("", "")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoadToken_FileErrors(t *testing.T) {
	_, err := LoadToken("", "/nonexistent/path/to/token")
	assert.Error(t, err)

	_, err = LoadToken("", writeToken(t, "   \n"))
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "****", Redact("short"))
	assert.Equal(t, "eyJh****", Redact("eyJhbGciOiJIUzI1NiJ9.payload.sig"))
}

func TestToken_NeverLoggedInFull(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	tok := Token("eyJhbGciOiJIUzI1NiJ9.payload.sig")
	logger.Info("connecting", "token", tok)

	assert.NotContains(t, buf.String(), "payload")
	assert.Contains(t, buf.String(), "eyJh****")
}
