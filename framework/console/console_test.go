package console_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-wiring/framework/console"
	"github.com/km-arc/go-wiring/framework/container"
)

const services = `
parameters:
  mail.host: localhost
services:
  mailer:
    module: mail/smtp
    arguments: ["%mail.host%"]
    tags: [listener]
  mailer.private:
    parent: mailer
    public: false
  store: "@mailer"
`

func writeDefinitions(t *testing.T, body string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "services.yml")
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))
	return file
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WIRING_DEFINITIONS", "")
	t.Setenv("LOG_LEVEL", "warn")
	var stdout, stderr bytes.Buffer
	err := console.Run(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")), &stdout, &stderr)
	return stdout.String(), err
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check", writeDefinitions(t, services))
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 3 services")
}

func TestCheck_InvalidDefinitions(t *testing.T) {
	_, err := run(t, "check", writeDefinitions(t, "services:\n  mailer: {module: x, creationMode: magic}\n"))
	assert.ErrorContains(t, err, "services.mailer.creationMode")
}

func TestCheck_UnknownParent(t *testing.T) {
	_, err := run(t, "check", writeDefinitions(t, "services:\n  child: {parent: ghost}\n"))
	assert.ErrorIs(t, err, container.ErrNotFound)
}

func TestCheck_NoFiles(t *testing.T) {
	_, err := run(t, "check")
	assert.ErrorContains(t, err, "no definition files")
}

func TestList_Table(t *testing.T) {
	out, err := run(t, "list", writeDefinitions(t, services))
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Regexp(t, `mailer\s+module\s+mail/smtp\s+shared\s+listener`, out)
	assert.Regexp(t, `mailer.private\s+module\s+mail/smtp\s+shared,private\s+listener`, out)
	assert.Regexp(t, `store\s+alias\s+@mailer`, out)
}

func TestList_JSONFiltered(t *testing.T) {
	out, err := run(t, "list", writeDefinitions(t, services), "--public", "--pattern", "mailer*", "--json")
	require.NoError(t, err)

	var infos []container.ServiceInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "mailer", infos[0].ID)
	assert.Equal(t, []string{"%mail.host%"}, infos[0].Arguments)
}

func TestList_ByTag(t *testing.T) {
	out, err := run(t, "list", writeDefinitions(t, services), "--tag", "listener", "--json")
	require.NoError(t, err)

	var infos []container.ServiceInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2, "tags are inherited from the parent")
	assert.Equal(t, "mailer", infos[0].ID)
	assert.Equal(t, "mailer.private", infos[1].ID)
}

func TestUnknownCommand(t *testing.T) {
	_, err := run(t, "explode")
	assert.Error(t, err)
}
