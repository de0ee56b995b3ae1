package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

func TestQueryCmd_Use(t *testing.T) {
	assert.Equal(t, "query [question]", queryCmd.Use)
}

func TestQueryCmd_HasTopKFlag(t *testing.T) {
	flag := queryCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag, "top-k flag should exist")
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "5", flag.DefValue)
}

func TestQueryCmd_Executes(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"query", "How long is the warranty?", "-k", "3"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "The warranty lasts two years.")
	assert.Contains(t, out, "Sources (2 contexts):")
	assert.Contains(t, out, "  - manual.pdf")
	assert.Equal(t, "How long is the warranty?", ts.query.lastReq.Question)
	assert.Equal(t, 3, ts.query.lastReq.TopK)
}

func TestQueryCmd_DefaultTopK(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"query", "anything"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, 5, ts.query.lastReq.TopK)
}

func TestQueryCmd_RejectsTopKBelowOne(t *testing.T) {
	for _, k := range []string{"0", "-1"} {
		t.Run(k, func(t *testing.T) {
			ts, cleanup := setupTestServices()
			defer cleanup()

			rootCmd.SetOut(new(bytes.Buffer))
			rootCmd.SetErr(new(bytes.Buffer))
			rootCmd.SetArgs([]string{"query", "anything", "--top-k=" + k})

			err := rootCmd.Execute()

			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Empty(t, ts.query.lastReq.Question)
		})
	}
}

func TestQueryCmd_JSONOutput(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.query.result = &domain.QueryResult{Answer: "I don't know.", NumContexts: 0}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"query", "unrelated?", "--json"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"I don't know.","sources":[],"num_contexts":0}`, buf.String())
}

func TestQueryCmd_AdmissionRejected(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.query.err = domain.ErrAdmissionRejected

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"query", "too many"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAdmissionRejected))
}
