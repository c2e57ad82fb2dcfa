package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MediSynth-io/authkit/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInitializePortal(t *testing.T) {
	path := writeConfig(t, `
portalPort: 3100
session:
  secret: portal-secret
  credentials:
    static:
      enabled: true
`)

	p, closer, logger, err := initializePortal(context.Background(), path)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Equal(t, 3100, p.Config.PortalPort)
	assert.Equal(t, config.StaticIdentity{Enabled: true, ID: "user1", Name: "Abhinav Sharma", Email: "abhinav@sharma.com"}, p.Config.Session.Credentials.Static)
	assert.NoError(t, closer.Close())
}

func TestInitializePortalMissingSecret(t *testing.T) {
	path := writeConfig(t, "portalPort: 3100\n")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("NEXTAUTH_SECRET", "")

	_, _, _, err := initializePortal(context.Background(), path)
	assert.ErrorContains(t, err, "NEXTAUTH_SECRET")
}

func TestInitializePortalConfigError(t *testing.T) {
	original := configLoad
	defer func() { configLoad = original }()

	configLoad = func(string) (*config.Config, error) {
		return nil, assert.AnError
	}

	p, _, _, err := initializePortal(context.Background(), "")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, p)
}
