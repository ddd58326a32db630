package signature

import (
	"bytes"
	"errors"
	"testing"
)

func FuzzCompile(f *testing.F) {
	f.Add("12 34 56 78")
	f.Add("12 ?? 56 78")
	f.Add("a?")
	f.Add("zz")
	f.Add("123")
	f.Add("")

	f.Fuzz(func(t *testing.T, text string) {
		sig, err := Compile(text, 0)
		if err != nil {
			if sig != nil {
				t.Fatalf("partial signature returned with error %v", err)
			}
			if !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}

		if len(sig.Mask()) != sig.Len() || len(sig.Pattern()) != sig.Len() {
			t.Fatalf("length mismatch: pattern %d mask %d len %d", len(sig.Pattern()), len(sig.Mask()), sig.Len())
		}

		prev := -1
		for _, k := range sig.MatchingIndices() {
			if k <= prev || k >= sig.Len() {
				t.Fatalf("matching indices not strictly ascending within bounds: %v", sig.MatchingIndices())
			}
			prev = k
		}

		_, anchored := sig.FirstByte().Index()
		if anchored != (len(sig.MatchingIndices()) > 0) {
			t.Fatalf("anchor presence %v disagrees with matching indices %v", anchored, sig.MatchingIndices())
		}

		again, err := Compile(sig.String(), 0)
		if err != nil {
			t.Fatalf("canonical form %q does not recompile: %v", sig.String(), err)
		}
		if !bytes.Equal(again.Pattern(), sig.Pattern()) {
			t.Fatalf("pattern changed on round trip: %x vs %x", again.Pattern(), sig.Pattern())
		}

		if !anchored {
			return
		}

		// The pattern itself, behind some padding, must be found.
		buf := append(make([]byte, 3), sig.Pattern()...)
		idx, err := sig.Index(buf)
		if err != nil {
			t.Fatalf("index: %v", err)
		}
		if idx < 0 || idx > 3 {
			t.Fatalf("pattern not found at or before its position: %d", idx)
		}
	})
}

func FuzzScan(f *testing.F) {
	f.Add([]byte{0x00, 0xFF}, "FF")
	f.Add([]byte{0x0B, 0x0C, 0x0D}, "0B ?? 0D")
	f.Add([]byte{}, "?? 01")

	f.Fuzz(func(t *testing.T, buf []byte, text string) {
		sig, err := Compile(text, 0)
		if err != nil {
			return
		}

		idx, err := sig.Index(buf)
		if errors.Is(err, ErrNoAnchor) {
			return
		}
		if err != nil {
			t.Fatalf("index: %v", err)
		}

		// Reference: try every window.
		want := -1
		for i := 0; i+sig.Len() <= len(buf); i++ {
			if sig.Matches(buf[i : i+sig.Len()]) {
				want = i
				break
			}
		}
		if idx != want {
			t.Fatalf("Index = %d, brute force = %d (sig %q, buf %x)", idx, want, sig.String(), buf)
		}
	})
}
