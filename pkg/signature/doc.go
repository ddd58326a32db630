// Package signature compiles array-of-bytes (AOB) signatures and locates them
// in byte buffers.
//
// A signature is written as hexadecimal byte pairs with "??" marking a byte
// that matches anything:
//
//	sig, err := signature.Compile("48 8B 05 ?? ?? ?? ?? 48 85 C0", 0)
//	if err != nil {
//	    return err
//	}
//
//	pos, found, err := signature.Scan(buf, sig)
//	if err != nil {
//	    return err // only signature.ErrNoAnchor
//	}
//	if found {
//	    fmt.Printf("signature at %#x\n", pos)
//	}
//
// Whitespace in the text is ignored. The offset passed to Compile is added to
// every reported position, so a signature can describe bytes that start some
// distance before or after the address of interest.
//
// A compiled *Signature is never modified after Compile returns and may be
// shared by any number of goroutines scanning concurrently.
package signature
