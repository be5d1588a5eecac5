package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "joyride.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestVersionCommand tests version output
func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Joyride version dev")
	assert.Contains(t, out, "Commit: unknown")
}

// TestConfigCommands tests validate and show against config files
func TestConfigCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    func(path string) []string
		content string
		wantErr bool
		want    []string
	}{
		{
			name:    "valid file",
			args:    func(p string) []string { return []string{"config", "validate", "--config", p} },
			content: "dns:\n  port: 5353\n",
			want:    []string{"Configuration is valid"},
		},
		{
			name:    "invalid file lists problems",
			args:    func(p string) []string { return []string{"config", "validate", "--config", p} },
			content: "dns:\n  port: 70000\n  domain: \"\"\n",
			wantErr: true,
			want:    []string{"dns.port", "dns.domain"},
		},
		{
			name:    "show effective config",
			args:    func(p string) []string { return []string{"config", "show", "--config", p} },
			content: "dns:\n  port: 5353\n  domain: lab\n",
			want:    []string{"port: 5353", "domain: lab", "grpc_port: 5001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args(writeConfig(t, tt.content))...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

// TestConfigEnvCommand tests the environment variable listing
func TestConfigEnvCommand(t *testing.T) {
	out, err := execute(t, "config", "env", "--config", "")
	require.NoError(t, err)
	assert.Contains(t, out, "JOYRIDE_DNS_PORT")
	assert.Contains(t, out, "JOYRIDE_LOG_LEVEL")
}
