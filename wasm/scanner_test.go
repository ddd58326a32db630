//go:build wasm

package main

import (
	"encoding/json"
	"syscall/js"
	"testing"

	"github.com/praetorian-inc/aobscan/pkg/scanner"
	"github.com/praetorian-inc/aobscan/pkg/types"
)

func uint8Array(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

func createScanner(t *testing.T, rules []*types.Rule) int {
	t.Helper()
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		t.Fatalf("Failed to marshal rules: %v", err)
	}
	result := newScanner(js.Value{}, []js.Value{js.ValueOf(string(rulesJSON))})
	resultMap := result.(map[string]interface{})
	if errMsg, hasError := resultMap["error"]; hasError {
		t.Fatalf("Failed to create scanner: %v", errMsg)
	}
	return resultMap["handle"].(int)
}

// TestScannerCreation tests creating a scanner with builtin rules
func TestScannerCreation(t *testing.T) {
	result := newScanner(js.Value{}, []js.Value{js.ValueOf("builtin")})

	resultMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map result, got %T", result)
	}

	if errMsg, hasError := resultMap["error"]; hasError {
		t.Fatalf("Failed to create scanner: %v", errMsg)
	}

	handle, hasHandle := resultMap["handle"]
	if !hasHandle {
		t.Fatal("Expected handle in result")
	}

	closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})
}

// TestScannerWithInvalidRules tests that a bad signature is rejected
func TestScannerWithInvalidRules(t *testing.T) {
	rulesJSON, _ := json.Marshal([]*types.Rule{{ID: "bad", Name: "Bad", Signature: "ABC"}})
	result := newScanner(js.Value{}, []js.Value{js.ValueOf(string(rulesJSON))})

	resultMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map result, got %T", result)
	}
	if _, hasError := resultMap["error"]; !hasError {
		t.Fatal("Expected error for invalid signature")
	}
}

// TestScanContent tests scanning a Uint8Array
func TestScanContent(t *testing.T) {
	handle := createScanner(t, []*types.Rule{
		{ID: "test-call", Name: "Call", Signature: "E8 ?? ?? ?? ??", Offset: 1},
	})
	defer closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})

	resultStr := scan(js.Value{}, []js.Value{
		js.ValueOf(handle),
		uint8Array([]byte{0x90, 0xE8, 0x10, 0x00, 0x00, 0x00}),
		js.ValueOf("test-source"),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.ScanResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}

	if len(result.Matches) != 1 {
		t.Fatalf("Expected one match, got %d", len(result.Matches))
	}
	if result.Matches[0].Position != 2 {
		t.Errorf("Expected position 2, got %d", result.Matches[0].Position)
	}
	if result.Source != "test-source" {
		t.Errorf("Expected source 'test-source', got %q", result.Source)
	}
}

// TestScanBatch tests batch scanning multiple content items
func TestScanBatch(t *testing.T) {
	handle := createScanner(t, []*types.Rule{
		{ID: "test-magic", Name: "Magic", Signature: "CA FE BA BE"},
	})
	defer closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})

	items := []scanner.ContentItem{
		{Source: "mem:1", Content: []byte{0xCA, 0xFE, 0xBA, 0xBE}},
		{Source: "mem:2", Content: []byte{0x00}},
		{Source: "mem:3", Content: []byte{0x00, 0xCA, 0xFE, 0xBA, 0xBE}},
	}

	itemsJSON, _ := json.Marshal(items)
	resultStr := scanBatch(js.Value{}, []js.Value{
		js.ValueOf(handle),
		js.ValueOf(string(itemsJSON)),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.BatchScanResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}

	if result.Total != 2 {
		t.Errorf("Expected 2 total matches, got %d", result.Total)
	}
	if len(result.Results) != 3 {
		t.Errorf("Expected 3 result items, got %d", len(result.Results))
	}
}

// TestFind tests the single-signature entry point
func TestFind(t *testing.T) {
	resultStr := find(js.Value{}, []js.Value{
		uint8Array([]byte{0x00, 0x0B, 0xFF, 0x0D}),
		js.ValueOf("0B ?? 0D"),
		js.ValueOf(16),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.FindResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if !result.Found || result.Position != 17 {
		t.Errorf("Expected found at 17, got %+v", result)
	}

	errResult := find(js.Value{}, []js.Value{uint8Array(nil), js.ValueOf("0B ?")})
	if _, ok := errResult.(map[string]interface{}); !ok {
		t.Errorf("Expected error map for odd-length signature, got %T", errResult)
	}
}

// TestGetBuiltinRules tests retrieving builtin rules
func TestGetBuiltinRules(t *testing.T) {
	result := getBuiltinRules(js.Value{}, nil)

	jsonStr, ok := result.(string)
	if !ok {
		if errMap, isMap := result.(map[string]interface{}); isMap {
			t.Fatalf("Got error: %v", errMap["error"])
		}
		t.Fatalf("Expected string result, got %T", result)
	}

	var rules []*types.Rule
	if err := json.Unmarshal([]byte(jsonStr), &rules); err != nil {
		t.Fatalf("Failed to parse rules: %v", err)
	}

	if len(rules) == 0 {
		t.Error("Expected at least one builtin rule")
	}

	for _, rule := range rules {
		if rule.ID == "" {
			t.Error("Rule missing ID")
		}
		if rule.Signature == "" {
			t.Error("Rule missing Signature")
		}
	}
}

// TestCloseScanner tests scanner cleanup
func TestCloseScanner(t *testing.T) {
	createResult := newScanner(js.Value{}, []js.Value{js.ValueOf("builtin")})
	handle := createResult.(map[string]interface{})["handle"].(int)

	closeResult := closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})
	if closeResult != nil {
		if errMap, ok := closeResult.(map[string]interface{}); ok {
			t.Fatalf("Close failed: %v", errMap["error"])
		}
	}

	scanResult := scan(js.Value{}, []js.Value{
		js.ValueOf(handle),
		js.ValueOf("test"),
	})

	if errMap, ok := scanResult.(map[string]interface{}); ok {
		if _, hasError := errMap["error"]; !hasError {
			t.Error("Expected error when using closed scanner")
		}
	} else {
		t.Error("Expected error when using closed scanner")
	}
}

// TestInvalidHandle tests error handling for invalid scanner handles
func TestInvalidHandle(t *testing.T) {
	result := scan(js.Value{}, []js.Value{
		js.ValueOf(99999),
		js.ValueOf("test"),
	})

	errMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected error map, got %T", result)
	}

	if _, hasError := errMap["error"]; !hasError {
		t.Error("Expected error for invalid handle")
	}
}
