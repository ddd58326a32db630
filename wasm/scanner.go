//go:build wasm

package main

import (
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/aobscan/pkg/scanner"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

// newScanner creates a new scanner with the given rules JSON.
// JS: AobscanNewScanner(rulesJSON) -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "rulesJSON argument required"}
	}

	rulesJSON := args[0].String()

	// Create scanner core (uses cached builtin rules)
	core, err := scanner.NewCore(rulesJSON, scanner.NoopLogger{})
	if err != nil {
		return map[string]interface{}{"error": "failed to create scanner: " + err.Error()}
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

// scan scans a single buffer.
// JS: AobscanScan(handle, content, source) -> JSON results or {error}
// content is a Uint8Array or a string whose UTF-8 bytes are scanned.
func scan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "handle and content arguments required"}
	}

	handle := args[0].Int()
	content := bytesArg(args[1])
	source := ""
	if len(args) > 2 {
		source = args[2].String()
	}

	core, ok := lookup(handle)
	if !ok {
		return map[string]interface{}{"error": "invalid scanner handle"}
	}

	result, err := core.Scan(content, source)
	if err != nil {
		return map[string]interface{}{"error": "scan failed: " + err.Error()}
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal results: " + err.Error()}
	}

	return string(jsonBytes)
}

// scanBatch scans multiple content items. Item content is base64 in JSON.
// JS: AobscanScanBatch(handle, itemsJSON) -> JSON results or {error}
func scanBatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "handle and itemsJSON arguments required"}
	}

	handle := args[0].Int()
	itemsJSON := args[1].String()

	core, ok := lookup(handle)
	if !ok {
		return map[string]interface{}{"error": "invalid scanner handle"}
	}

	var items []scanner.ContentItem
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return map[string]interface{}{"error": "failed to parse items JSON: " + err.Error()}
	}

	batchResult, err := core.ScanBatch(items)
	if err != nil {
		return map[string]interface{}{"error": "batch scan failed: " + err.Error()}
	}

	jsonBytes, err := json.Marshal(batchResult)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal results: " + err.Error()}
	}

	return string(jsonBytes)
}

// find compiles one signature and reports its first position.
// JS: AobscanFind(content, signature, offset) -> JSON result or {error}
func find(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "content and signature arguments required"}
	}

	offset := 0
	if len(args) > 2 {
		offset = args[2].Int()
	}

	result, err := scanner.Find(bytesArg(args[0]), args[1].String(), offset)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal result: " + err.Error()}
	}

	return string(jsonBytes)
}

// closeScanner closes a scanner and releases resources.
// JS: AobscanCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "handle argument required"}
	}

	handle := args[0].Int()

	scannersMu.Lock()
	core, ok := scanners[handle]
	if ok {
		delete(scanners, handle)
	}
	scannersMu.Unlock()

	if !ok {
		return map[string]interface{}{"error": "invalid scanner handle"}
	}

	core.Close()

	return nil
}

// getBuiltinRules returns the built-in rules as JSON.
// JS: AobscanGetBuiltinRules() -> JSON rules array
func getBuiltinRules(this js.Value, args []js.Value) interface{} {
	rules, err := scanner.GetBuiltinRules()
	if err != nil {
		return map[string]interface{}{"error": "failed to load builtin rules: " + err.Error()}
	}

	jsonBytes, err := json.Marshal(rules)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal rules: " + err.Error()}
	}

	return string(jsonBytes)
}

func lookup(handle int) (*scanner.Core, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	core, ok := scanners[handle]
	return core, ok
}

// bytesArg copies a Uint8Array into Go memory. Any other value is scanned
// as the UTF-8 bytes of its string form.
func bytesArg(v js.Value) []byte {
	if v.Type() == js.TypeString {
		return []byte(v.String())
	}
	if v.InstanceOf(js.Global().Get("Uint8Array")) {
		buf := make([]byte, v.Get("length").Int())
		js.CopyBytesToGo(buf, v)
		return buf
	}
	return []byte(v.String())
}
