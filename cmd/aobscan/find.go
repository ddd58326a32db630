package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/praetorian-inc/aobscan/pkg/datastore"
	"github.com/praetorian-inc/aobscan/pkg/scanner"
	"github.com/praetorian-inc/aobscan/pkg/signature"
	"github.com/praetorian-inc/aobscan/pkg/types"
	"github.com/spf13/cobra"
)

var (
	findOffset    int
	findFormat    string
	findDatastore string
)

var findCmd = &cobra.Command{
	Use:   "find <signature> <file>",
	Short: "Find the first occurrence of a signature in a file",
	Long: `Compile a signature and report where it first occurs in a file.

The reported position is the start of the first matching window plus the
offset. Use "-" as the file to read from stdin. With --datastore, the second
argument is the ID of a blob kept by "scan --store-blobs".`,
	Example: `  aobscan find "7F 45 4C 46 ?? ?? 01" /bin/ls
  aobscan find "E8 ?? ?? ?? ?? 48 8B" --offset 1 payload.bin
  aobscan find "48 8B 05" --datastore aobscan.ds 5e1c309dae7f45e0f39b1bf3ac3cd9db12e7d689`,
	Args: cobra.ExactArgs(2),
	RunE: runFind,
}

var formatCmd = &cobra.Command{
	Use:   "format <signature>",
	Short: "Print a signature in canonical form",
	Long:  "Strip whitespace from a signature and print it as upper-case byte pairs separated by single spaces",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormat,
}

func init() {
	findCmd.Flags().IntVar(&findOffset, "offset", 0, "Value added to the reported position")
	findCmd.Flags().StringVar(&findFormat, "format", "human", "Output format: human, json")
	findCmd.Flags().StringVar(&findDatastore, "datastore", "", "Read the target blob from this datastore directory")
}

func runFind(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	if findDatastore != "" {
		content, err = readStoredBlob(findDatastore, args[1])
	} else {
		content, err = readInput(cmd, args[1])
	}
	if err != nil {
		return err
	}

	result, err := scanner.Find(content, args[0], findOffset)
	if err != nil {
		return describeSignatureError(err)
	}

	switch findFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "human":
		if !result.Found {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not found\n", result.Signature)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: found at %s (%d)\n", result.Signature, hexPosition(int64(result.Position)), result.Position)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", findFormat)
	}
}

func runFormat(cmd *cobra.Command, args []string) error {
	canonical, err := signature.Format(args[0])
	if err != nil {
		return describeSignatureError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), canonical)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func readStoredBlob(dir, hexID string) ([]byte, error) {
	id, err := types.ParseBlobID(hexID)
	if err != nil {
		return nil, fmt.Errorf("invalid blob ID %q: %w", hexID, err)
	}
	if !datastore.IsDatastore(dir) {
		return nil, fmt.Errorf("not a datastore: %s", dir)
	}

	ds, err := datastore.Open(dir, datastore.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	if ds.BlobStore == nil {
		return nil, fmt.Errorf("datastore %s keeps no blobs; scan with --store-blobs", dir)
	}
	return ds.BlobStore.Get(id)
}

// describeSignatureError turns compile and scan errors into messages that
// name the offending part of the signature.
func describeSignatureError(err error) error {
	var lengthErr *signature.InvalidLengthError
	var stringErr *signature.InvalidStringError
	switch {
	case errors.As(err, &lengthErr):
		return fmt.Errorf("invalid signature: %d hex characters after removing whitespace, want an even number", lengthErr.Length)
	case errors.As(err, &stringErr):
		return fmt.Errorf("invalid signature: %q is not a hex byte or wildcard", stringErr.Group)
	case errors.Is(err, signature.ErrNoAnchor):
		return fmt.Errorf("invalid signature: it needs at least one concrete byte")
	default:
		return err
	}
}

// hexPosition renders a position as hex. Offsets can push it below zero.
func hexPosition(pos int64) string {
	if pos < 0 {
		return fmt.Sprintf("-0x%X", -pos)
	}
	return fmt.Sprintf("0x%X", pos)
}
