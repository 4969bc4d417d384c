package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/punqy/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePassword(t *testing.T) {
	root := guard.NewRootCommand("admin-console", "test", commands())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"encode-password", "s3cret"})
	require.NoError(t, root.Execute())

	encoded := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(encoded, "{bcrypt}"), encoded)
	valid, err := guard.NewPasswordEncoder().IsPasswordValid(encoded, "s3cret")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestEncodePasswordNeedsOneArgument(t *testing.T) {
	root := guard.NewRootCommand("admin-console", "test", commands())
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"encode-password"})
	assert.Error(t, root.Execute())
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	root := guard.NewRootCommand("admin-console", "test", commands())
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.Flags().Parse([]string{"--profile", "secure", "--port", "9999", "--context-path", "/console", "--log-level", "debug"}))

	sf := serveFlags{profiles: []string{"secure"}, port: 9999, contextPath: "/console", logLevel: "debug"}
	cfg, err := loadConfig(serve, sf)
	require.NoError(t, err)
	assert.Equal(t, []string{"secure"}, cfg.Profiles)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/console", cfg.Admin.ContextPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
