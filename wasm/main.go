//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("AobscanNewScanner", js.FuncOf(newScanner))
	js.Global().Set("AobscanScan", js.FuncOf(scan))
	js.Global().Set("AobscanScanBatch", js.FuncOf(scanBatch))
	js.Global().Set("AobscanFind", js.FuncOf(find))
	js.Global().Set("AobscanCloseScanner", js.FuncOf(closeScanner))
	js.Global().Set("AobscanGetBuiltinRules", js.FuncOf(getBuiltinRules))

	// Keep WASM running
	<-make(chan struct{})
}
