package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBootstrap() *Bootstrap {
	b := &Bootstrap{
		Server: &Server{},
		Data:   &Data{},
		Mpesa: &Mpesa{
			ConsumerKey:    "key",
			ConsumerSecret: "secret",
			Shortcode:      "174379",
			Passkey:        "passkey",
			CallbackURL:    "https://example.com/api/mpesa/callback",
		},
	}
	b.Server.Http.Addr = "0.0.0.0:8000"
	b.Data.Database.Source = "user:pass@tcp(localhost:3306)/db"
	return b
}

func TestValidate(t *testing.T) {
	require.NoError(t, validBootstrap().Validate())

	tests := []struct {
		name   string
		mutate func(b *Bootstrap)
	}{
		{name: "missing server", mutate: func(b *Bootstrap) { b.Server = nil }},
		{name: "missing http addr", mutate: func(b *Bootstrap) { b.Server.Http.Addr = "" }},
		{name: "missing data", mutate: func(b *Bootstrap) { b.Data = nil }},
		{name: "missing database source", mutate: func(b *Bootstrap) { b.Data.Database.Source = "" }},
		{name: "missing mpesa", mutate: func(b *Bootstrap) { b.Mpesa = nil }},
		{name: "missing consumer key", mutate: func(b *Bootstrap) { b.Mpesa.ConsumerKey = "" }},
		{name: "missing shortcode", mutate: func(b *Bootstrap) { b.Mpesa.Shortcode = "" }},
		{name: "missing passkey", mutate: func(b *Bootstrap) { b.Mpesa.Passkey = "" }},
		{name: "missing callback url", mutate: func(b *Bootstrap) { b.Mpesa.CallbackURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBootstrap()
			tt.mutate(b)
			assert.Error(t, b.Validate())
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("not-a-duration", time.Minute))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  http:
    addr: 127.0.0.1:9000
mpesa:
  shortcode: "174379"
cron:
  sweep_stale_after: 20m
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.Server.Http.Addr)
	assert.Equal(t, "174379", c.Mpesa.Shortcode)
	assert.Equal(t, "20m", c.Cron.SweepStaleAfter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
