package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Canonical(t *testing.T) {
	p := Policy{"gpa_min": Float(3.0), "cloud_certified": Bool(true)}

	assert.Equal(t, `{"cloud_certified": true, "gpa_min": 3.0}`, p.Canonical())
	assert.Equal(t, "4497c13af89b65fcf4d5e8ec58db383487201b1d4b44a455c5179ed3df902709", p.CommitmentHash().Hex())
}

func TestPolicy_HashIgnoresInsertionOrder(t *testing.T) {
	var a, b Policy
	require.NoError(t, json.Unmarshal([]byte(`{"gpa_min": 3.0, "cloud_certified": true, "grad_year_min": 2021}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"grad_year_min": 2021, "cloud_certified": true, "gpa_min": 3.0}`), &b))

	assert.Equal(t, a.CommitmentHash(), b.CommitmentHash())
}

func TestPolicy_IntAndFloatAreDistinct(t *testing.T) {
	asInt := Policy{"min_score": Int(3)}
	asFloat := Policy{"min_score": Float(3)}

	assert.Equal(t, `{"min_score": 3}`, asInt.Canonical())
	assert.Equal(t, `{"min_score": 3.0}`, asFloat.Canonical())
	assert.NotEqual(t, asInt.CommitmentHash(), asFloat.CommitmentHash())
}

func TestPolicy_StandardKeysUseDeclaredKind(t *testing.T) {
	var a, b Policy
	require.NoError(t, json.Unmarshal([]byte(`{"gpa_min": 3, "grad_year_min": 2021.0, "cloud_certified": 1}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"gpa_min": 3.0, "grad_year_min": 2021, "cloud_certified": true}`), &b))

	assert.Equal(t, `{"cloud_certified": true, "gpa_min": 3.0, "grad_year_min": 2021}`, a.Canonical())
	assert.Equal(t, b.Canonical(), a.Canonical())
	assert.Equal(t, b.CommitmentHash(), a.CommitmentHash())
	assert.Equal(t, b.WithJobDefaults().CommitmentHash(), a.WithJobDefaults().CommitmentHash())

	p, err := ParsePolicy(map[string]any{"gpa_min": 3, "years_experience_min": 2.0})
	require.NoError(t, err)
	assert.Equal(t, KindFloat, p["gpa_min"].Kind())
	assert.Equal(t, KindInt, p["years_experience_min"].Kind())
}

func TestPolicy_StandardKeysRejectIncompatibleValues(t *testing.T) {
	for _, p := range []Policy{
		{"grad_year_min": Float(2021.5)},
		{"years_experience_min": Bool(true)},
		{"cloud_certified": Int(2)},
		{"gpa_min": Bool(false)},
	} {
		assert.Error(t, p.Validate(), p.Canonical())
	}
}

func TestValue_FloatFormatting(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3, "3.0"},
		{123.456, "123.456"},
		{-3.25, "-3.25"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{1.5e-7, "1.5e-07"},
		{1e15, "1000000000000000.0"},
		{1e16, "1e+16"},
		{2.5e20, "2.5e+20"},
		{0, "0.0"},
		{math.Copysign(0, -1), "0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Float(tt.in).Canonical())
		})
	}
}

func TestParseValue(t *testing.T) {
	t.Run("json numbers", func(t *testing.T) {
		v, err := ParseValue(json.Number("2020"))
		require.NoError(t, err)
		assert.Equal(t, KindInt, v.Kind())

		v, err = ParseValue(json.Number("7.0"))
		require.NoError(t, err)
		assert.Equal(t, KindFloat, v.Kind())

		v, err = ParseValue(json.Number("1E3"))
		require.NoError(t, err)
		assert.Equal(t, "1000.0", v.Canonical())
	})

	t.Run("rejections", func(t *testing.T) {
		for _, raw := range []any{"3.0", nil, math.NaN(), math.Inf(1), json.Number("99999999999999999999")} {
			_, err := ParseValue(raw)
			assert.Error(t, err, "%v", raw)
		}
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(map[string]any{"gpa_min": 3.5, "cloud_certified": false})
	require.NoError(t, err)
	assert.Equal(t, `{"cloud_certified": false, "gpa_min": 3.5}`, p.Canonical())

	for _, key := range []string{"GPA", "1gpa", "gpa-min", ""} {
		_, err := ParsePolicy(map[string]any{key: 1})
		assert.Error(t, err, key)
	}
}

func TestPolicy_UnmarshalRejectsStrings(t *testing.T) {
	var p Policy
	err := json.Unmarshal([]byte(`{"gpa_min": "3.0"}`), &p)
	assert.Error(t, err)
}

func TestPolicy_WithJobDefaults(t *testing.T) {
	got := Policy{}.WithJobDefaults()
	assert.Equal(t,
		`{"cloud_certified": false, "gpa_min": 7.0, "grad_year_min": 2020, "years_experience_min": 0}`,
		got.Canonical())
	assert.Equal(t, "5dc032ced4102e2a3ca85d9186e3917d94b74e0cc9ea9b87a4c8726bb7003dcf", got.CommitmentHash().Hex())

	override := Policy{"gpa_min": Float(3.2)}
	merged := override.WithJobDefaults()
	assert.True(t, strings.Contains(merged.Canonical(), `"gpa_min": 3.2`))
	assert.Len(t, override, 1)
}

func TestCommitRequest_Validate(t *testing.T) {
	req := &CommitRequest{EmployerID: "google", Policy: Policy{"gpa_min": Float(3)}}
	require.NoError(t, req.Validate())

	req.Policy = Policy{}
	assert.Error(t, req.Validate())

	req.Policy = Policy{"Bad Key": Int(1)}
	assert.Error(t, req.Validate())
}
