package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/store"
)

func resultGraph(t *testing.T) *store.Graph {
	t.Helper()
	g, err := store.ParseNTriplesString(`<https://mms.test/orgs/o> <http://purl.org/dc/terms/title> "O" .` + "\n")
	require.NoError(t, err)
	return g
}

func TestOutputFormatter_JSONResult(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	g := resultGraph(t)
	err := formatter.Result(&engine.Result{
		TransactionID: "t-1",
		CommitID:      "t-1",
		Passed:        []string{"clusterInitialized"},
		Graph:         g,
	})
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ResultData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "t-1", resp.Data.TransactionID)
	assert.Equal(t, []string{"clusterInitialized"}, resp.Data.Passed)
	assert.Equal(t, g.String(), resp.Data.Graph)
}

func TestOutputFormatter_TextResult(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: diag, Verbose: true}

	g := resultGraph(t)
	require.NoError(t, formatter.Result(&engine.Result{TransactionID: "t-1", CommitID: "c-1", Graph: g}))

	assert.Equal(t, g.String(), out.String(), "stdout holds only the graph")
	assert.Contains(t, diag.String(), "transaction t-1 commit c-1")
}

func TestOutputFormatter_ServiceError(t *testing.T) {
	err := mms.NewConditionError(mms.ReasonAlreadyExists, "orgNotExists", "Org <https://mms.test/orgs/o> already exists.")

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, (&OutputFormatter{Format: "json", Writer: buf}).ServiceError(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "PreconditionFailed", resp.Error.Code)
		assert.Equal(t, "AlreadyExists", resp.Error.Reason)
		assert.Equal(t, "Org <https://mms.test/orgs/o> already exists.", resp.Error.Message)
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, (&OutputFormatter{Format: "text", Writer: buf}).ServiceError(err))
		assert.Equal(t, "Error [PreconditionFailed/AlreadyExists]: Org <https://mms.test/orgs/o> already exists.\n", buf.String())
	})

	t.Run("store fault stays opaque", func(t *testing.T) {
		buf := &bytes.Buffer{}
		fault := mms.NewStoreFault(errors.New("dial tcp 10.0.0.1:3030: connection refused"))
		require.NoError(t, (&OutputFormatter{Format: "text", Writer: buf}).ServiceError(fault))
		assert.Contains(t, buf.String(), "Error [StoreFault]")
		assert.NotContains(t, buf.String(), "10.0.0.1")
	})
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("Validation", "bad config", map[string]string{"path": "log.level"}))
	assert.Contains(t, buf.String(), "Error [Validation]: bad config")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			formatter.VerboseLog("opening %s", "journal.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "opening journal.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"permission", mms.NewPermissionDenied("permitCreateOrgOnCluster", "no"), ExitFailure},
		{"precondition", mms.NewConditionError(mms.ReasonNotFound, "orgExists", "missing"), ExitFailure},
		{"conflict", mms.NewConditionError(mms.ReasonLockHeld, "targetNotLocked", "locked"), ExitFailure},
		{"validation", mms.NewValidationError("org id is required"), ExitCommandError},
		{"store fault", mms.NewStoreFault(errors.New("down")), ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}

	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", errors.New("y"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	silent := WrapExitError(ExitFailure, "org create failed", errors.New("refused"))
	silent.Silent = true
	assert.True(t, IsSilent(silent))
	assert.False(t, IsSilent(errors.New("plain")))
	assert.Equal(t, "org create failed: refused", silent.Error())
}
