package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/pipeline"
)

// executeCommand runs the root command with args and captures its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RESTAGE_HOME", t.TempDir())

	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, BuildInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-15"})

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := executeCommand(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "run")
	assert.Contains(t, out, "validate")
	assert.Contains(t, out, "config")
	assert.Contains(t, out, "version")
}

func TestRootRejectsInvalidOutputFormat(t *testing.T) {
	_, err := executeCommand(t, "--output", "yaml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestRootUnknownCommand(t *testing.T) {
	_, err := executeCommand(t, "frobnicate")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestRootVersionFlag(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "abc1234")
}

func TestVersionCommandText(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "restage 1.2.3")
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := executeCommand(t, "version", "--output", "json")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "1.2.3", payload["version"])
	assert.Equal(t, "abc1234", payload["commit"])
	assert.Contains(t, payload, "go_version")
}

func TestFormatVersionDefaults(t *testing.T) {
	t.Parallel()

	got := formatVersion(BuildInfo{})
	assert.Equal(t, "dev (commit: none, built: unknown)", got)
}

func TestConfigShowText(t *testing.T) {
	out, err := executeCommand(t, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "vision:")
	assert.Contains(t, out, "thresholds:")
	assert.Contains(t, out, "api_key_env_var: GEMINI_API_KEY")
	// The config never carries the key itself, only the env var name.
	assert.NotContains(t, out, "AIza")
}

func TestConfigShowJSON(t *testing.T) {
	out, err := executeCommand(t, "config", "show", "--output", "json")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Contains(t, cfg, "vision")
	assert.Contains(t, cfg, "pipeline")
	assert.Contains(t, cfg, "checks")
}

func TestRunCommandRequiresInputArg(t *testing.T) {
	_, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestValidateCommandRejectsUnknownStage(t *testing.T) {
	_, err := executeCommand(t, "validate", "a.png", "b.png", "--stage", "9")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestValidateCommandRejectsUnknownScene(t *testing.T) {
	_, err := executeCommand(t, "validate", "a.png", "b.png", "--scene", "underwater")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestWriteRunResultText(t *testing.T) {
	t.Parallel()

	result := &pipeline.Result{
		JobID: "job-1",
		Final: domain.Artifact{StageID: domain.StageStaging, ImageRef: "/tmp/out.png"},
		Outcomes: []pipeline.StageOutcome{
			{Stage: domain.StageEnhance, Verdict: domain.Accept(1, nil), Attempts: 1},
			{Stage: domain.StageDeclutter, Verdict: domain.Accept(1, nil), Attempts: 2},
			{Stage: domain.StageStaging, Verdict: domain.Reject(0.5, nil, "window 0 disappeared"), Attempts: 2, FellBack: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeRunResult(&buf, OutputText, result))

	out := buf.String()
	assert.Contains(t, out, "Job job-1")
	assert.Contains(t, out, "fell back")
	assert.Contains(t, out, "window 0 disappeared")
	assert.Contains(t, out, "/tmp/out.png")
}

func TestWriteRunResultJSON(t *testing.T) {
	t.Parallel()

	result := &pipeline.Result{
		JobID: "job-2",
		Outcomes: []pipeline.StageOutcome{
			{Stage: domain.StageEnhance, Verdict: domain.Accept(1, nil), Attempts: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeRunResult(&buf, OutputJSON, result))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "job-2", decoded["job_id"])
}

func TestWriteVerdictText(t *testing.T) {
	t.Parallel()

	verdict := domain.Reject(0.42, map[string]float64{"edge_similarity": 0.31}, "edge similarity 0.31 below hard floor 0.40")

	var buf bytes.Buffer
	require.NoError(t, writeVerdict(&buf, OutputText, domain.StageEnhance, verdict))

	out := buf.String()
	assert.Contains(t, out, "stage 1A: FAIL (score 0.420)")
	assert.Contains(t, out, "edge similarity 0.31 below hard floor 0.40")
	assert.Contains(t, out, "edge_similarity = 0.3100")
}

func TestWriteVerdictJSON(t *testing.T) {
	t.Parallel()

	verdict := domain.Accept(0.95, map[string]float64{"check_score": 0.95})

	var buf bytes.Buffer
	require.NoError(t, writeVerdict(&buf, OutputJSON, domain.StageStaging, verdict))

	var decoded domain.ValidationVerdict
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.True(t, decoded.OK)
	assert.InDelta(t, 0.95, decoded.Score, 1e-9)
}
