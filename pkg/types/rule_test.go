package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_ComputeStructuralID(t *testing.T) {
	rule := Rule{ID: "aob.elf.1", Name: "ELF", Signature: "7F 45 4C 46"}

	id := rule.ComputeStructuralID()
	assert.Len(t, id, 40)

	// Formatting and ID changes do not matter.
	reformatted := Rule{ID: "other.id", Name: "Other", Signature: "7f454c46"}
	assert.Equal(t, id, reformatted.ComputeStructuralID())

	// The offset does.
	shifted := Rule{ID: "aob.elf.1", Name: "ELF", Signature: "7F 45 4C 46", Offset: 4}
	assert.NotEqual(t, id, shifted.ComputeStructuralID())

	// So do the bytes.
	different := Rule{ID: "aob.elf.1", Name: "ELF", Signature: "7F 45 4C 47"}
	assert.NotEqual(t, id, different.ComputeStructuralID())
}

func TestRule_ComputeStructuralID_InvalidSignature(t *testing.T) {
	rule := Rule{ID: "bad", Name: "Bad", Signature: "123"}
	assert.Len(t, rule.ComputeStructuralID(), 40)
}

func TestRule_Compile(t *testing.T) {
	rule := Rule{ID: "aob.pe.1", Name: "PE", Signature: "4D 5A ?? 00", Offset: -2}

	sig, err := rule.Compile()
	require.NoError(t, err)
	assert.Equal(t, 4, sig.Len())
	assert.Equal(t, -2, sig.Offset())
	assert.Equal(t, "4D 5A ?? 00", sig.String())

	_, err = (&Rule{Signature: "zz"}).Compile()
	assert.Error(t, err)
}
