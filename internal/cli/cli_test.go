package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quititoday/clickstats/internal/config"
	"github.com/quititoday/clickstats/internal/logger"
	"github.com/quititoday/clickstats/memory"
)

// sharedMemory opens the same in-memory store for every command, so state
// carries across invocations within one test.
func sharedMemory(store *memory.Store) openFunc {
	return func(context.Context, *config.Config, logger.Logger) (*backend, error) {
		return &backend{
			store:  store,
			schema: func(context.Context) error { return nil },
			close:  func(context.Context) {},
		}, nil
	}
}

func run(t *testing.T, open openFunc, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(open)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--store", "memory", "--log-level", "disabled"}, args...))

	err := cmd.ExecuteContext(t.Context())

	return out.String(), err
}

func TestCommands(t *testing.T) {
	open := sharedMemory(memory.New())

	out, err := run(t, open, "record", "u1")
	require.NoError(t, err)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, "u1", first["userId"])
	assert.InDelta(t, 1, first["totalClicks"], 0)

	_, err = run(t, open, "record", "u2")
	require.NoError(t, err)

	out, err = run(t, open, "total")
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalClicks":2}`, out)

	out, err = run(t, open, "list", "u1")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, first["createDateTime"], rows[0]["createDateTime"])

	date := first["date"].(string)

	out, err = run(t, open, "list", "u1", "--from", date, "--to", date)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 1)

	out, err = run(t, open, "by-date", date)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 2)

	out, err = run(t, open, "daily", "2025-10-02", "--add", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2025-10-02","totalClicks":3}`, out)

	out, err = run(t, open, "daily", "2025-10-02")
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2025-10-02","totalClicks":3}`, out)

	out, err = run(t, open, "monthly", "2025-09")
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2025-09","totalClicks":0}`, out)

	out, err = run(t, open, "init")
	require.NoError(t, err)
	assert.Equal(t, "memory store is ready\n", out)
}

func TestCommandErrors(t *testing.T) {
	open := sharedMemory(memory.New())

	tests := []struct {
		name string
		args []string
	}{
		{"record without user", []string{"record"}},
		{"reserved subject", []string{"record", "STAT#TOTAL"}},
		{"half range", []string{"list", "u1", "--from", "2025-10-02"}},
		{"inverted range", []string{"list", "u1", "--from", "2025-10-03", "--to", "2025-10-02"}},
		{"bad date", []string{"by-date", "02/10/2025"}},
		{"zero increment", []string{"monthly", "2025-10", "--add", "0"}},
		{"create table on memory", []string{"init", "--create-table"}},
		{"unknown store", []string{"--store", "cassandra", "total"}},
		{"unknown log level", []string{"--log-level", "loud", "total"}},
		{"enqueue without queue", []string{"enqueue", "u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, open, tt.args...)
			assert.Error(t, err)
		})
	}
}
