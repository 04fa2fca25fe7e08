package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registration struct {
	MRNumber string `json:"mr_number" validate:"omitempty,mrnumber"`
}

func TestMRNumber(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	assert.NoError(t, v.Struct(registration{MRNumber: "MR-2024-0042"}))
	assert.NoError(t, v.Struct(registration{}))

	err := v.Struct(registration{MRNumber: "MR-2024-42"})
	require.Error(t, err)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "mr_number", verrs[0].Field())
	assert.Equal(t, "mrnumber", verrs[0].Tag())
}

func TestNewReadsBindingTags(t *testing.T) {
	type user struct {
		Username string `json:"username" binding:"required,min=3"`
		Code     string `json:"code" binding:"omitempty,mrnumber"`
	}
	v := New()

	assert.NoError(t, v.Struct(&user{Username: "admin", Code: "MR-2024-0001"}))

	err := v.Struct(&user{Username: "ab", Code: "x"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}
