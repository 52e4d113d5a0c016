package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/middleware"
	"github.com/platinummonkey/sitepass/pkg/team"
)

const testSecret = "cli-test-secret"

// sqliteEnv points the config at a fresh SQLite file
func sqliteEnv(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitepass.db")
	t.Setenv("SITEPASS_CONFIG", "")
	t.Setenv("SITEPASS_DB_DRIVER", "sqlite3")
	t.Setenv("SITEPASS_DB_URL", "file:"+path+"?_txlock=immediate&_busy_timeout=5000")
	t.Setenv("SITEPASS_DB_MAX_CONNS", "1")
	t.Setenv("SITEPASS_REDIS_URL", "")
	t.Setenv("SITEPASS_JWT_SECRET", testSecret)
	t.Setenv("SITEPASS_LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandLists(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "sweep", "bootstrap-admin", "token", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sitepass "+Version+"\n", out)
}

func TestMigrateBootstrapAndSweep(t *testing.T) {
	sqliteEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	_, err = run(t, "migrate")
	require.NoError(t, err, "migrate is idempotent")

	out, err = run(t, "bootstrap-admin", "--project", "tower-a", "--user", "u-1", "--email", "PM@GC.example", "--company", "GC")
	require.NoError(t, err)
	var m team.Member
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "tower-a", m.ProjectID)
	assert.Equal(t, catalog.RoleOwner, m.Role)
	assert.Equal(t, catalog.AccessAdmin, m.AccessLevel)
	assert.Equal(t, "pm@gc.example", m.ContactEmail)
	assert.True(t, m.IsActive)

	_, err = run(t, "bootstrap-admin", "--project", "tower-a", "--user", "u-2")
	assert.Error(t, err, "a project bootstraps once")

	out, err = run(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "expired 0 invitation(s)\n", out)
}

func TestBootstrapAdminRequiresFlags(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "bootstrap-admin", "--project", "tower-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
}

func TestToken(t *testing.T) {
	sqliteEnv(t)

	out, err := run(t, "token", "--user", "u-9", "--email", "nine@sub.example", "--ttl", "10m")
	require.NoError(t, err)

	p, err := middleware.NewJWTVerifier([]byte(testSecret), "").Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-9", p.UserID)
	assert.Equal(t, "nine@sub.example", p.Email)

	_, err = run(t, "token")
	assert.Error(t, err)
}

func TestConfigFlag(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("SITEPASS_DB_DRIVER", "")

	path := filepath.Join(t.TempDir(), "sitepass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o600))

	_, err := run(t, "--config", path, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestServeRequiresCredentials(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("SITEPASS_JWT_SECRET", "")

	_, err := run(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}
