package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nexuscred/pkg/domain-errors"
)

type field struct {
	Name  string `validate:"notblank"`
	Value string `validate:"max=16"`
}

type sample struct {
	IssuerID        string  `validate:"required,notblank"`
	RequirementHash string  `validate:"omitempty,digest"`
	GPAMin          float64 `validate:"gte=0,lte=10"`
	Fields          []field `validate:"dive"`
}

func TestValidate(t *testing.T) {
	valid := sample{IssuerID: "mit", RequirementHash: strings.Repeat("ab", 32), GPAMin: 3}

	t.Run("accepts valid struct", func(t *testing.T) {
		require.NoError(t, Validate(valid))
	})

	t.Run("required field", func(t *testing.T) {
		in := valid
		in.IssuerID = ""
		err := Validate(in)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, "issuer_id is required", err.Error())
	})

	t.Run("blank field", func(t *testing.T) {
		in := valid
		in.IssuerID = "   "
		assert.Equal(t, "issuer_id must not be blank", Validate(in).Error())
	})

	t.Run("digest tag", func(t *testing.T) {
		in := valid
		in.RequirementHash = "nothex"
		assert.Equal(t, "requirement_hash must be a 64 character hex digest", Validate(in).Error())

		in.RequirementHash = "0x" + strings.Repeat("0f", 32)
		assert.NoError(t, Validate(in))
	})

	t.Run("range tag", func(t *testing.T) {
		in := valid
		in.GPAMin = 11
		assert.Equal(t, "gpa_min must be less than or equal to 10", Validate(in).Error())
	})

	t.Run("nested field path", func(t *testing.T) {
		in := valid
		in.Fields = []field{{Name: " ", Value: "x"}}
		assert.Equal(t, "fields[0].name must not be blank", Validate(in).Error())
	})
}

func TestSnakeCase(t *testing.T) {
	for in, want := range map[string]string{
		"IssuerID":        "issuer_id",
		"GPAMin":          "gpa_min",
		"RequirementHash": "requirement_hash",
		"PiA":             "pi_a",
		"Fields[0]":       "fields[0]",
	} {
		assert.Equal(t, want, snakeCase(in), in)
	}
}
