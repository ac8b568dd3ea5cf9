package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractorCodeUUID(t *testing.T) {
	a := ContractorCodeUUID("DM01")
	b := ContractorCodeUUID("DM01")
	c := ContractorCodeUUID("DM02")

	assert.Equal(t, a, b, "same code must always derive the same id")
	assert.NotEqual(t, a, c, "different codes must derive different ids")
	assert.NotEmpty(t, a.String())
}
