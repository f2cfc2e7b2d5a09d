package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ballotbox/internal/cli/config"
	"github.com/leapstack-labs/ballotbox/internal/cli/output"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Ballotbox v"+Version)
}

func TestRootCmd_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)

	for _, want := range []string{"serve", "query", "render", "history", "completion", "--backend", "--wire-format"} {
		assert.Contains(t, out, want)
	}
}

func TestRootCmd_Completion(t *testing.T) {
	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "ballotbox")

	_, err = run(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	_, err := run(t, "--backend", "not a url", "version")

	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "backend.url", verr.Fields[0].Key)
}

func TestRootCmd_LoadsConfigIntoContext(t *testing.T) {
	t.Cleanup(config.ResetConfig)

	var (
		gotBackend string
		gotMode    output.OutputMode
		gotLogger  bool
	)
	cmd := NewRootCmd()
	cmd.AddCommand(&cobra.Command{
		Use: "inspect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			gotBackend = GetConfig(ctx).Backend.URL
			gotMode = GetRenderer(ctx).EffectiveMode()
			gotLogger = ctx.Value(config.LoggerKey()) != nil
			return nil
		},
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"inspect", "--backend", "https://polls.example.com/api", "-o", "json"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Equal(t, "https://polls.example.com/api", gotBackend)
	assert.Equal(t, output.ModeJSON, gotMode)
	assert.True(t, gotLogger)
}

func TestGetConfig_Default(t *testing.T) {
	cfg := GetConfig(context.Background())
	assert.Equal(t, "http://localhost:8080/api", cfg.Backend.URL)
}
