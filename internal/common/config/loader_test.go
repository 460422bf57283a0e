package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
app:
  name: orderbyvoice
  environment: test
database:
  postgres:
    host: localhost
    port: 5432
    database: orderbyvoice
    user: app
  redis:
    address: localhost:6379
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "orderbyvoice", cfg.App.Name)
	assert.Equal(t, "localhost", cfg.Database.Postgres.Host)

	// Defaults fill everything the file left out.
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 300, cfg.Database.Redis.CacheTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Contains(t, cfg.Conversation.RemovalTriggers, "sem")
	assert.Contains(t, cfg.Conversation.ConfirmationKeywords, "confirmar")
	assert.Contains(t, cfg.Conversation.CancellationKeywords, "cancelar")
	assert.Equal(t, 5000, cfg.GenAI.Timeout)
}

func TestLoadFromFileWithoutPostgres(t *testing.T) {
	path := writeConfig(t, `
app:
  name: orderbyvoice
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Postgres.Host)
}

func TestLoadFromFileIncompletePostgres(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: localhost
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.database")
}

func TestLoadFromFileGenAIRequiresBaseURL(t *testing.T) {
	path := writeConfig(t, `
genai:
  enabled: true
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "genai.base_url")
}

func TestGetDSN(t *testing.T) {
	p := PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "secret",
		Database: "orders",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=orders sslmode=disable", p.GetDSN())
}

func TestConversationOverrides(t *testing.T) {
	path := writeConfig(t, `
conversation:
  confirmation_keywords: ["fechar pedido"]
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"fechar pedido"}, cfg.Conversation.ConfirmationKeywords)
	// Unset cue lists still get defaults.
	assert.Contains(t, cfg.Conversation.NameCues, "me chamo")
}
