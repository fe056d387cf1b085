package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Every pipeline failure is surfaced through these types, so the invariants
// "wrapping keeps the original kind" and "errors.Is matches by code" must hold.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeUnknownBatch, Message: "batch bat_1 not found"}
		s.Equal("batch bat_1 not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeEmptyBatch}
		s.Equal("empty_batch", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	s.Run("matches same code with different messages", func() {
		err1 := &Error{Code: CodeUnknownProof, Message: "proof a"}
		err2 := &Error{Code: CodeUnknownProof, Message: "proof b"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeUnknownProof}
		err2 := &Error{Code: CodeUnknownBatch}
		s.False(err1.Is(err2))
	})

	s.Run("finds inner code through the chain", func() {
		inner := &Error{Code: CodeNoCredentials, Message: "original"}
		outer := fmt.Errorf("gateway: %w", inner)
		s.True(errors.Is(outer, &Error{Code: CodeNoCredentials}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code", func() {
		original := New(CodeCollaboratorUnavailable, "ledger timed out")
		wrapped := Wrap(original, CodeInternal, "anchor failed")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeCollaboratorUnavailable, domainErr.Code)
		s.Equal("anchor failed", domainErr.Message)
	})

	s.Run("uses provided code for plain errors", func() {
		wrapped := Wrap(errors.New("connection reset"), CodeInternal, "save batch")
		s.True(HasCode(wrapped, CodeInternal))
	})

	s.Run("keeps the cause reachable", func() {
		cause := errors.New("root cause")
		s.ErrorIs(Wrap(cause, CodeInternal, "x"), cause)
	})
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Equal(Code(""), CodeOf(nil))
	s.Equal(CodeEmptyBatch, CodeOf(New(CodeEmptyBatch, "no credentials in batch")))
	s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	s.Equal(CodeDoubleRegistration, CodeOf(fmt.Errorf("register: %w", New(CodeDoubleRegistration, "dup"))))
}

func (s *DomainErrorsSuite) TestHasCodeNil() {
	s.False(HasCode(nil, CodeNotFound))
}
