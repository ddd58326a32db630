package main

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Exists(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"serve"})
	assert.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name())
}

func TestServeCommand_Integration(t *testing.T) {
	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	testCmd := &cobra.Command{
		Use:  "serve",
		RunE: runServe,
	}
	testCmd.SetIn(pr)
	testCmd.SetOut(out)
	testCmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() {
		done <- testCmd.Execute()
	}()

	// "AQID" is base64 for 01 02 03.
	_, err := pw.Write([]byte(`{"type":"find","payload":{"content":"AQID","signature":"02 ??","offset":0}}` + "\n"))
	require.NoError(t, err)
	_, err = pw.Write([]byte(`{"type":"close","payload":{}}` + "\n"))
	require.NoError(t, err)
	pw.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("command did not exit in time")
	}

	output := out.String()
	assert.Contains(t, output, `"type":"ready"`)
	assert.Contains(t, output, `"found":true`)
	assert.Contains(t, output, `"position":1`)
}
