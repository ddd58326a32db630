package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/praetorian-inc/aobscan/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// elfHeader matches the builtin ELF rule.
var elfHeader = []byte{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01, 0x00}

// requestLine encodes one NDJSON request.
func requestLine(t *testing.T, reqType string, payload any) string {
	t.Helper()
	p, err := json.Marshal(payload)
	require.NoError(t, err)
	line, err := json.Marshal(Request{Type: reqType, Payload: p})
	require.NoError(t, err)
	return string(line) + "\n"
}

// runServer runs a server over input until EOF and returns the responses.
func runServer(t *testing.T, input string) []Response {
	t.Helper()

	core, err := scanner.NewCore("builtin", nil)
	require.NoError(t, err)
	defer core.Close()

	out := &bytes.Buffer{}
	srv := NewServer(core, strings.NewReader(input), out)
	require.NoError(t, srv.Run(context.Background()))

	var responses []Response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServer_SendsReadyOnStart(t *testing.T) {
	core, err := scanner.NewCore("builtin", nil)
	require.NoError(t, err)
	defer core.Close()

	in := strings.NewReader("")
	out := &bytes.Buffer{}

	srv := NewServer(core, in, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately to exit after ready

	_ = srv.Run(ctx)

	// Parse first line as ready message
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)

	var resp Response
	err = json.Unmarshal([]byte(lines[0]), &resp)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "ready", resp.Type)

	var ready ReadyData
	require.NoError(t, json.Unmarshal(resp.Data, &ready))
	assert.Equal(t, Version, ready.Version)
}

func TestServer_Scan(t *testing.T) {
	content := append([]byte{0x00, 0x00}, elfHeader...)
	responses := runServer(t, requestLine(t, "scan", ScanPayload{Content: content, Source: "test"}))
	require.Len(t, responses, 2) // ready + scan response

	resp := responses[1]
	assert.True(t, resp.Success)
	assert.Equal(t, "scan", resp.Type)

	var result scanner.ScanResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "test", result.Source)
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, "aob.elf.1", result.Matches[0].RuleID)
	assert.Equal(t, int64(2), result.Matches[0].Position)
}

func TestServer_GracefulShutdownOnContext(t *testing.T) {
	core, err := scanner.NewCore("builtin", nil)
	require.NoError(t, err)
	defer core.Close()

	// Slow reader that blocks
	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	srv := NewServer(core, pr, out)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- srv.Run(ctx)
	}()

	// Wait for ready signal
	time.Sleep(100 * time.Millisecond)

	// Cancel context
	cancel()
	pw.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServer_ScanBatch(t *testing.T) {
	payload := ScanBatchPayload{Items: []scanner.ContentItem{
		{Source: "s1", Content: []byte("nothing")},
		{Source: "s2", Content: elfHeader},
	}}
	responses := runServer(t, requestLine(t, "scan_batch", payload))
	require.Len(t, responses, 2)

	resp := responses[1]
	assert.True(t, resp.Success)
	assert.Equal(t, "scan_batch", resp.Type)

	var result scanner.BatchScanResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Len(t, result.Results, 2)
	assert.Empty(t, result.Results[0].Matches)
	assert.NotEmpty(t, result.Results[1].Matches)
	assert.Equal(t, len(result.Results[1].Matches), result.Total)
}

func TestServer_Find(t *testing.T) {
	input := requestLine(t, "find", FindPayload{Content: elfHeader, Signature: "45 ?? 46", Offset: 0x1000}) +
		requestLine(t, "find", FindPayload{Content: elfHeader, Signature: "AA BB"}) +
		requestLine(t, "find", FindPayload{Content: elfHeader, Signature: "?? ??"}) +
		requestLine(t, "find", FindPayload{Content: elfHeader, Signature: "4"})

	responses := runServer(t, input)
	require.Len(t, responses, 5)

	var found scanner.FindResult
	require.True(t, responses[1].Success)
	require.NoError(t, json.Unmarshal(responses[1].Data, &found))
	assert.True(t, found.Found)
	assert.Equal(t, 0x1001, found.Position)
	assert.Equal(t, "45 ?? 46", found.Signature)

	var missing scanner.FindResult
	require.True(t, responses[2].Success)
	require.NoError(t, json.Unmarshal(responses[2].Data, &missing))
	assert.False(t, missing.Found)

	for _, resp := range responses[3:] {
		assert.False(t, resp.Success)
		assert.Equal(t, "find", resp.Type)
		assert.NotEmpty(t, resp.Error)
	}
	assert.Contains(t, responses[3].Error, "anchor")
	assert.Contains(t, responses[4].Error, "length")
}

func TestServer_CloseCommand(t *testing.T) {
	input := `{"type":"close","payload":{}}` + "\n" +
		requestLine(t, "scan", ScanPayload{Content: elfHeader})

	responses := runServer(t, input)
	require.Len(t, responses, 1) // Only ready signal; requests after close are ignored
}

func TestServer_UnknownCommand(t *testing.T) {
	responses := runServer(t, `{"type":"invalid","payload":{}}`+"\n")
	require.Len(t, responses, 2)

	assert.False(t, responses[1].Success)
	assert.Equal(t, "unknown", responses[1].Type)
	assert.Contains(t, responses[1].Error, "unknown request type")
}

func TestServer_BadPayload(t *testing.T) {
	// Content must be base64.
	responses := runServer(t, `{"type":"scan","payload":{"content":"not base64!","source":"x"}}`+"\n")
	require.Len(t, responses, 2)

	assert.False(t, responses[1].Success)
	assert.Equal(t, "scan", responses[1].Type)
}

func TestServer_MalformedJSON(t *testing.T) {
	core, err := scanner.NewCore("builtin", nil)
	require.NoError(t, err)
	defer core.Close()

	request := `{invalid json}` + "\n"
	in := strings.NewReader(request)
	out := &bytes.Buffer{}

	srv := NewServer(core, in, out)
	_ = srv.Run(context.Background())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)

	var resp Response
	_ = json.Unmarshal([]byte(lines[1]), &resp)

	assert.False(t, resp.Success)
	assert.Equal(t, "decode", resp.Type)
}
