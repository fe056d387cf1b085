package models

import (
	"errors"
	"fmt"
	"strings"
)

// SchemeGroth16 is the only proof scheme accepted.
const SchemeGroth16 = "groth16"

// Groth16Proof is an externally generated proof: pi_a and pi_c are three
// field elements, pi_b is three pairs. Elements are decimal or 0x-hex strings.
type Groth16Proof struct {
	Scheme string     `json:"scheme"`
	PiA    []string   `json:"pi_a"`
	PiB    [][]string `json:"pi_b"`
	PiC    []string   `json:"pi_c"`
}

// Validate checks the payload's shape. It says nothing about validity.
func (g Groth16Proof) Validate() error {
	if g.Scheme != SchemeGroth16 {
		return fmt.Errorf("unsupported proof scheme %q", g.Scheme)
	}
	if err := validateElements("pi_a", g.PiA); err != nil {
		return err
	}
	if len(g.PiB) != 3 {
		return fmt.Errorf("pi_b must have 3 pairs, got %d", len(g.PiB))
	}
	for i, pair := range g.PiB {
		if len(pair) != 2 {
			return fmt.Errorf("pi_b[%d] must have 2 elements, got %d", i, len(pair))
		}
		for j, e := range pair {
			if !isFieldElement(e) {
				return fmt.Errorf("pi_b[%d][%d] is not a field element", i, j)
			}
		}
	}
	return validateElements("pi_c", g.PiC)
}

func validateElements(name string, elems []string) error {
	if len(elems) != 3 {
		return fmt.Errorf("%s must have 3 elements, got %d", name, len(elems))
	}
	for i, e := range elems {
		if !isFieldElement(e) {
			return fmt.Errorf("%s[%d] is not a field element", name, i)
		}
	}
	return nil
}

var errEmptyElement = errors.New("empty element")

func isFieldElement(s string) bool {
	return parseElement(s) == nil
}

func parseElement(s string) error {
	if s == "" {
		return errEmptyElement
	}
	digits, base := s, 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits, base = s[2:], 16
	}
	if digits == "" {
		return errEmptyElement
	}
	for _, r := range digits {
		switch {
		case r >= '0' && r <= '9':
		case base == 16 && (r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'):
		default:
			return fmt.Errorf("invalid digit %q", r)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (g Groth16Proof) Clone() Groth16Proof {
	out := Groth16Proof{
		Scheme: g.Scheme,
		PiA:    append([]string(nil), g.PiA...),
		PiC:    append([]string(nil), g.PiC...),
	}
	if g.PiB != nil {
		out.PiB = make([][]string, len(g.PiB))
		for i, pair := range g.PiB {
			out.PiB[i] = append([]string(nil), pair...)
		}
	}
	return out
}
