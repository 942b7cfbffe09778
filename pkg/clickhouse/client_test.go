package clickhouse

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("ch"),
		WithPort(9440),
		WithDatabase("shootdown"),
		WithCredentials("reader", "p@ss"),
		WithTimeouts(3*time.Second, 20*time.Second),
		WithMaxExecutionTime(90 * time.Second),
	} {
		opt(cfg)
	}

	u, err := url.Parse(buildDSN(*cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch:9440", u.Host)
	assert.Equal(t, "/shootdown", u.Path)
	assert.Equal(t, "reader", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "3s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "20s", u.Query().Get("read_timeout"))
	assert.Equal(t, "90", u.Query().Get("max_execution_time"))
}

func TestBuildDSNHTTP(t *testing.T) {
	cfg := defaultConfig()
	WithHost("ch")(cfg)
	WithHTTP(true)(cfg)
	assert.True(t, strings.HasPrefix(buildDSN(*cfg), "http://"))
}

func TestResidualSchema(t *testing.T) {
	stmts := ResidualSchema("shootdown")
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[1], "shootdown.cbbc")
	assert.Contains(t, stmts[2], "shootdown.ohlc")
}
