package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, EngineTypesense, cfg.SearchEngine)
	assert.Equal(t, "http://localhost:8108", cfg.TypesenseURL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "storefront", cfg.PostgresUser)
	assert.Equal(t, "storefront", cfg.PostgresDB)
	assert.Empty(t, cfg.RedisHost)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
	assert.Empty(t, cfg.OpenAIAPIKey)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SEARCH_HTTP_PORT", "9090")
	t.Setenv("SEARCH_ENGINE", "memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("SEARCH_CACHE_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, EngineMemory, cfg.SearchEngine)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "redis", cfg.RedisHost)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("SEARCH_HTTP_PORT", "99999")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE")
}

func TestLoad_InvalidSearchEngine(t *testing.T) {
	t.Setenv("SEARCH_ENGINE", "solr")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid search engine")
}

func TestPostgresConfig(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5433")

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.PostgresConfig()
	assert.Equal(t, "db.internal", pg.Host)
	assert.Equal(t, 5433, pg.Port)
	assert.Equal(t, "storefront", pg.User)
	assert.Equal(t, "storefront", pg.DBName)
}

func TestRedisConfig(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	rd := cfg.RedisConfig()
	assert.Equal(t, "redis", rd.Host)
	assert.Equal(t, 6379, rd.Port)
	assert.Equal(t, 2, rd.DB)
}
