package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrobot/server/internal/auth"
)

func TestSimulateOnboarding(t *testing.T) {
	in := strings.NewReader("Hi\n15061990\n\n1430\nLondon, UK\nyes\n/reset\nhello\n/quit\nignored\n")
	var out bytes.Buffer

	cmd := rootCommand()
	cmd.SetArgs([]string{"simulate", "--user", "447700900189"})
	cmd.SetIn(in)
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.Contains(t, got, "What is your birth date?")
	assert.Contains(t, got, "15/06/1990")
	assert.Contains(t, got, "[Yes] [No]")
	assert.Contains(t, got, "Your profile is saved.")
	assert.Contains(t, got, "(session reset)")
	assert.Contains(t, got, "Welcome back!")
	assert.NotContains(t, got, "ignored")
}

func TestSimulateSpanish(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetArgs([]string{"simulate", "--default-language", "es"})
	cmd.SetIn(strings.NewReader("Hola\n"))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "fecha de nacimiento")
}

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetArgs([]string{"token", "--operator", "alice", "--secret", "s3cret", "--ttl", "1h"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	claims, err := auth.NewJWTService("s3cret").VerifyToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	t.Setenv("JWT_SECRET", "")
	cmd = rootCommand()
	cmd.SetArgs([]string{"token", "--operator", "alice"})
	cmd.SetOut(&out)
	assert.Error(t, cmd.Execute())
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cmd := rootCommand()
	cmd.SetArgs([]string{"migrate", "status"})
	assert.ErrorContains(t, cmd.Execute(), "DATABASE_URL")

	cmd = rootCommand()
	cmd.SetArgs([]string{"migrate", "down"})
	assert.Error(t, cmd.Execute())
}
