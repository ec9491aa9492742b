package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/agora/internal/auth"
	pkgconfig "github.com/starford/agora/pkg/config"
)

func TestAuthConfig_EmptyModeDefaultsStatic(t *testing.T) {
	cfg := AuthConfig{}
	require.NoError(t, cfg.Validate(), "empty mode should default to static")
	assert.Equal(t, AuthModeStatic, cfg.Mode)
}

func TestAuthConfig_StaticTokensValidated(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeStatic, Tokens: []auth.Token{{Token: "x", UserID: "alice"}}}
	require.NoError(t, cfg.Validate())

	cfg.Tokens = append(cfg.Tokens, auth.Token{Token: "y", UserID: "bob", Role: "overlord"})
	assert.Error(t, cfg.Validate(), "unknown role should fail validation")
}

func TestAuthConfig_FileModeRequiresPath(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeFile}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokens_file is empty")

	cfg.TokensFile = "tokens.yaml"
	assert.NoError(t, cfg.Validate())
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic"}
	assert.Error(t, cfg.Validate())
}

func TestBlobsConfig_BaseURL(t *testing.T) {
	for _, base := range []string{"", "/", "files", "http://x/files"} {
		cfg := BlobsConfig{Path: "./files", BaseURL: base}
		assert.Error(t, cfg.Validate(), "base_url %q should fail validation", base)
	}
	cfg := BlobsConfig{Path: "./files", BaseURL: "/files"}
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestFullConfig_FromYAML(t *testing.T) {
	t.Setenv("AGORA_ALICE_TOKEN", "alice-secret")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
sqlite:
  path: /tmp/agora.db
blobs:
  path: /tmp/files
  base_url: /files
auth:
  mode: static
  tokens:
    - token: ${AGORA_ALICE_TOKEN}
      user_id: alice
      role: reviewer
events:
  throttle: 500ms
`
	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Decode([]byte(yaml), cfg))
	assert.Equal(t, 9090, cfg.App.HTTP.Port)
	assert.Equal(t, ":9090", cfg.App.HTTP.Address())
	assert.Equal(t, 500*time.Millisecond, cfg.Events.Throttle)
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, "alice-secret", cfg.Auth.Tokens[0].Token)
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = AuthModeFile
	cfg.Auth.TokensFile = ""
	assert.Error(t, cfg.Validate(), "full config validate should catch auth error")
}
