package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex_Lookup(t *testing.T) {
	idx := NewIndex()

	idx.Add(FieldCompany, "ACME GmbH")
	idx.Add(FieldCompany, "ACME GmbH")
	idx.Add(FieldCompany, "Alpha KG")
	idx.Add(FieldCompany, "Beta OG")
	idx.Add(FieldName, "Hosting")

	assert.Equal(t, []string{"ACME GmbH", "Alpha KG"}, idx.Lookup(FieldCompany, "a", 0))
	assert.Equal(t, []string{"ACME GmbH"}, idx.Lookup(FieldCompany, "a", 1))
	assert.Empty(t, idx.Lookup(FieldCompany, "hosting", 0))
	assert.Equal(t, []string{"Hosting"}, idx.Lookup(FieldName, "Ho", 0))
}

func TestIndex_RemoveKeepsSharedValues(t *testing.T) {
	idx := NewIndex()

	idx.Add(FieldCategory, "Office")
	idx.Add(FieldCategory, "Office")

	idx.Remove(FieldCategory, "Office")
	assert.Equal(t, []string{"Office"}, idx.Lookup(FieldCategory, "", 0))

	idx.Remove(FieldCategory, "Office")
	assert.Empty(t, idx.Lookup(FieldCategory, "", 0))
}

func TestIndex_IgnoresEmptyValues(t *testing.T) {
	idx := NewIndex()

	idx.Add(FieldCompany, "")
	assert.Empty(t, idx.Lookup(FieldCompany, "", 0))

	// Removing an untracked value must not panic or underflow.
	idx.Remove(FieldCompany, "never added")
	assert.Empty(t, idx.Lookup(FieldCompany, "", 0))
}
