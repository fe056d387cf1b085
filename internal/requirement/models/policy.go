package models

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"nexuscred/pkg/commitment"
)

// Kind is the type of a policy value.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a numeric or boolean policy threshold. Integers and floats are
// distinct kinds: 3 and 3.0 canonicalize differently unless the key is a
// standard job key with a declared kind.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
}

func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }

func (v Value) Kind() Kind { return v.kind }

// As converts v to kind k. Integers widen to floats, integral floats narrow
// to integers, and the integers 0 and 1 convert to booleans.
func (v Value) As(k Kind) (Value, error) {
	if v.kind == k {
		return v, nil
	}
	switch k {
	case KindFloat:
		if v.kind == KindInt {
			return Float(float64(v.i)), nil
		}
	case KindInt:
		if v.kind == KindFloat && v.f == math.Trunc(v.f) && math.Abs(v.f) <= 1<<53 {
			return Int(int64(v.f)), nil
		}
	case KindBool:
		if v.kind == KindInt && (v.i == 0 || v.i == 1) {
			return Bool(v.i == 1), nil
		}
	}
	return Value{}, fmt.Errorf("cannot use %s %s as %s", v.kind, v.Canonical(), k)
}

// ParseValue converts a decoded JSON scalar into a Value. json.Number values
// containing a decimal point or exponent are floats, everything else is an
// integer. NaN and infinities are rejected.
func ParseValue(raw any) (Value, error) {
	switch x := raw.(type) {
	case bool:
		return Bool(x), nil
	case json.Number:
		s := x.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Value{}, fmt.Errorf("invalid number %q", s)
			}
			return checkedFloat(f)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("integer %q out of range", s)
		}
		return Int(n), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		return checkedFloat(x)
	case Value:
		return x, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

func checkedFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("non-finite number")
	}
	return Float(f), nil
}

// Canonical renders the value in its canonical textual form.
func (v Value) Canonical() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// formatFloat produces the shortest round-tripping representation. Decimal
// exponents in [-4, 16) print positionally with at least one fractional
// digit; others use e-notation with a signed two-digit minimum exponent.
func formatFloat(f float64) string {
	if f == 0 {
		return "0.0"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.Canonical()), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Policy is an employer's eligibility policy: named numeric or boolean
// thresholds. Its commitment hash is independent of key insertion order.
type Policy map[string]Value

// ParsePolicy validates keys and converts raw decoded values.
func ParsePolicy(raw map[string]any) (Policy, error) {
	p := make(Policy, len(raw))
	for k, rv := range raw {
		if !keyPattern.MatchString(k) {
			return nil, fmt.Errorf("policy key %q must match %s", k, keyPattern)
		}
		v, err := ParseValue(rv)
		if err != nil {
			return nil, fmt.Errorf("policy key %q: %w", k, err)
		}
		if v, err = coerce(k, v); err != nil {
			return nil, fmt.Errorf("policy key %q: %w", k, err)
		}
		p[k] = v
	}
	return p, nil
}

// Validate checks every key against the key pattern.
func (p Policy) Validate() error {
	for k, v := range p {
		if !keyPattern.MatchString(k) {
			return fmt.Errorf("policy key %q must match %s", k, keyPattern)
		}
		if v.kind == 0 {
			return fmt.Errorf("policy key %q has no value", k)
		}
		if _, err := coerce(k, v); err != nil {
			return fmt.Errorf("policy key %q: %w", k, err)
		}
	}
	return nil
}

// coerce converts the value of a standard job key to its declared kind.
// Other keys pass through unchanged.
func coerce(key string, v Value) (Value, error) {
	want, ok := standardKinds[key]
	if !ok {
		return v, nil
	}
	return v.As(want)
}

// Canonical serializes the policy as a JSON object with keys in ascending
// byte order, ", " between members and ": " between key and value. Standard
// job keys render in their declared kind.
//
//	{"cloud_certified": true, "gpa_min": 3.0}
func (p Policy) Canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(k))
		b.WriteString(": ")
		v := p[k]
		if c, err := coerce(k, v); err == nil {
			v = c
		}
		b.WriteString(v.Canonical())
	}
	b.WriteByte('}')
	return b.String()
}

// CommitmentHash hashes the canonical serialization with the field hash
// function.
func (p Policy) CommitmentHash() commitment.Digest {
	return commitment.HashField(p.Canonical())
}

// Standard job policy keys and their defaults.
const (
	KeyGPAMin             = "gpa_min"
	KeyCloudCertified     = "cloud_certified"
	KeyYearsExperienceMin = "years_experience_min"
	KeyGradYearMin        = "grad_year_min"
)

var standardKinds = map[string]Kind{
	KeyGPAMin:             KindFloat,
	KeyCloudCertified:     KindBool,
	KeyYearsExperienceMin: KindInt,
	KeyGradYearMin:        KindInt,
}

var jobDefaults = Policy{
	KeyGPAMin:             Float(7.0),
	KeyCloudCertified:     Bool(false),
	KeyYearsExperienceMin: Int(0),
	KeyGradYearMin:        Int(2020),
}

// WithJobDefaults returns a copy of p with any missing standard job key set
// to its default.
func (p Policy) WithJobDefaults() Policy {
	out := make(Policy, len(p)+len(jobDefaults))
	for k, v := range jobDefaults {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}
