package serve

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/praetorian-inc/aobscan/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServer_ScanBatch_RaceCondition tests that scan_batch responses are sent
// even when EOF arrives before the main loop processes the pending request.
func TestServer_ScanBatch_RaceCondition(t *testing.T) {
	core, err := scanner.NewCore("builtin", nil)
	require.NoError(t, err)
	defer core.Close()

	request := requestLine(t, "scan_batch", ScanBatchPayload{Items: []scanner.ContentItem{
		{Source: "s1", Content: []byte("test1")},
		{Source: "s2", Content: elfHeader},
	}})

	// Run the test multiple times to trigger the race condition
	for i := range 10 {
		in := strings.NewReader(request)
		out := &strings.Builder{}

		srv := NewServer(core, in, out)
		err = srv.Run(context.Background())
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2, "iteration %d: expected 2 lines (ready + scan_batch response), got %d", i, len(lines))

		var resp Response
		err = json.Unmarshal([]byte(lines[1]), &resp)
		require.NoError(t, err, "iteration %d: failed to unmarshal response", i)

		assert.True(t, resp.Success, "iteration %d: expected success", i)
		assert.Equal(t, "scan_batch", resp.Type, "iteration %d: expected scan_batch type", i)
	}
}
