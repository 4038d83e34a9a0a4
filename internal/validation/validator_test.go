package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Size  int    `validate:"gt=0"`
	Order string `validate:"oneof=asc desc"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "a", Size: 1, Order: "asc"}))

	err := ValidateStruct(sample{Order: "up"})
	require.Error(t, err)

	var errs Errors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 3)
	assert.Contains(t, err.Error(), "sample.Name is required")
	assert.Contains(t, err.Error(), "sample.Order must be one of [asc desc]")
}
