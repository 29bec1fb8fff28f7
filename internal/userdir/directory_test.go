package userdir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) (*Directory, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	return Open(path), path
}

func TestCreateNewUser(t *testing.T) {
	d, _ := newTestDirectory(t)

	record, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)

	assert.Equal(t, "alice", record.Username)
	assert.Equal(t, 1, record.LoginCount)
	assert.Equal(t, record.CreatedAt, record.LastLoginAt)
	assert.NotNil(t, record.Preferences)
}

func TestRepeatLoginIncrementsCount(t *testing.T) {
	d, _ := newTestDirectory(t)

	first, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)

	second, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)
	third, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)

	assert.Equal(t, 2, second.LoginCount)
	assert.Equal(t, 3, third.LoginCount)
	assert.GreaterOrEqual(t, second.LastLoginAt, first.LastLoginAt)
	assert.GreaterOrEqual(t, third.LastLoginAt, second.LastLoginAt)
	assert.Equal(t, first.CreatedAt, third.CreatedAt)
}

func TestWrongPassword(t *testing.T) {
	d, _ := newTestDirectory(t)

	_, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)

	_, err = d.AuthenticateOrCreate("alice", "wrong")
	require.ErrorIs(t, err, ErrBadCredentials)

	// The failed attempt must not have mutated the record.
	record, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, 2, record.LoginCount)
}

func TestValidationRejections(t *testing.T) {
	cases := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"empty password", "alice", ""},
		{"whitespace-only username", "   ", "pw"},
		{"21 characters", strings.Repeat("a", 21), "pw"},
		{"contains space", "ali ce", "pw"},
		{"contains slash", "ali/ce", "pw"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, path := newTestDirectory(t)

			_, err := d.AuthenticateOrCreate(tc.username, tc.password)
			require.Error(t, err)

			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)

			// No partial mutation: the table was never written.
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr), "validation failure must not create a record")
		})
	}
}

func TestUsernameTrimmed(t *testing.T) {
	d, _ := newTestDirectory(t)

	record, err := d.AuthenticateOrCreate("  alice  ", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", record.Username)

	again, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.LoginCount)
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	_, err := Open(path).AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)

	record, err := Open(path).AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, 2, record.LoginCount)
}

func TestPasswordStoredHashed(t *testing.T) {
	d, path := newTestDirectory(t)

	record, err := d.AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", record.PasswordHash)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"password": "pw1"`)
}

func TestCorruptTableReadsAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	record, err := Open(path).AuthenticateOrCreate("alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, 1, record.LoginCount, "unreadable table starts over empty")
}
