package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/seo-analyzer/internal/config"
)

func TestParse(t *testing.T) {
	yml := `
server:
  port: 9090
  corsOrigins:
    - https://app.example.com
  apiKeys:
    dashboard: secret-key-1
  rateLimit:
    capacity: 30
    refillRate: 1
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: seo
  password: hunter2
  name: seo_analyzer
  sslMode: require
openai:
  apiKey: sk-test
  model: gpt-4o
minio:
  enabled: true
  endpoint: minio.internal:9000
  bucketName: reports
artifacts:
  dir: /var/tmp/reports
`
	cfg, err := config.Parse(strings.NewReader(yml))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	require.Equal(t, "secret-key-1", cfg.Server.APIKeys["dashboard"])
	require.Equal(t, 30, cfg.Server.RateLimit.Capacity)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	require.True(t, cfg.Minio.Enabled)
	require.Equal(t, "/var/tmp/reports", cfg.Artifacts.Dir)

	require.Equal(t,
		"host=db.internal port=5432 user=seo password=hunter2 dbname=seo_analyzer sslmode=require",
		cfg.PostgresDSN())
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader("{}"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "mysql", cfg.Database.Driver)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("DATABASE_PASSWORD", "env-password")

	yml := `
openai:
  apiKey: sk-from-file
database:
  user: seo
  host: localhost
  port: 3306
  name: seo_analyzer
  password: file-password
`
	cfg, err := config.Parse(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
	require.Equal(t, "env-password", cfg.Database.Password)
	require.Contains(t, cfg.MySQLDSN(), "seo:env-password@tcp(localhost:3306)/seo_analyzer")
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := config.Parse(strings.NewReader("server: [not a map"))
	require.Error(t, err)
}
