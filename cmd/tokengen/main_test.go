package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"webhook-engine/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTokengen(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokengen_IssuesVerifiableToken(t *testing.T) {
	t.Setenv("WHE_TOKEN_SECRET", "test-bootstrap-secret")

	owner := uuid.New().String()
	out, err := runTokengen(t, "--subject", owner)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "subject: "+owner, lines[0])

	token := lines[2]
	claims, err := service.NewJWTTokenService("test-bootstrap-secret", time.Hour, "webhook-engine").Validate(token)
	require.NoError(t, err)
	assert.Equal(t, owner, claims.Subject)
}

func TestTokengen_DefaultsToFreshSubject(t *testing.T) {
	t.Setenv("WHE_TOKEN_SECRET", "test-bootstrap-secret")

	out, err := runTokengen(t)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	generated := strings.TrimPrefix(lines[0], "subject: ")
	_, err = uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestTokengen_RejectsNonUUIDSubject(t *testing.T) {
	t.Setenv("WHE_TOKEN_SECRET", "test-bootstrap-secret")

	_, err := runTokengen(t, "--subject", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner UUID")
}

func TestTokengen_RequiresSecret(t *testing.T) {
	t.Setenv("WHE_TOKEN_SECRET", "")

	_, err := runTokengen(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token.secret")
}
