package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives used at every trust boundary.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "verification not found"}
		s.Equal("verification not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeNotFound}
		s.Equal("not_found", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("database connection failed")
		err := &Error{Code: CodeInternal, Message: "store error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeNotFound, Message: "verification not found"}
		err2 := &Error{Code: CodeNotFound, Message: "application not found"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		s.False((&Error{Code: CodeNotFound}).Is(&Error{Code: CodeInternal}))
	})

	s.Run("does not match non-domain errors", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not found")))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeTimeout, Message: "scoring timed out"}
		wrapped := fmt.Errorf("verify: %w", inner)
		s.True(errors.Is(wrapped, &Error{Code: CodeTimeout}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code", func() {
		inner := New(CodeInvalidInput, "last_name is required")
		err := Wrap(inner, CodeInternal, "verification rejected")
		s.True(HasCode(err, CodeInvalidInput))
		s.Equal("verification rejected", err.Error())
	})

	s.Run("applies code to plain errors", func() {
		err := Wrap(errors.New("boom"), CodeUnavailable, "store unavailable")
		s.True(HasCode(err, CodeUnavailable))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.False(HasCode(errors.New("plain"), CodeInternal))
	s.False(HasCode(nil, CodeInternal))
	s.True(HasCode(New(CodeCanceled, "canceled"), CodeCanceled))
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Run("finds the code through fmt wrapping", func() {
		code, ok := CodeOf(fmt.Errorf("decode: %w", New(CodePayloadTooLarge, "body too large")))
		s.True(ok)
		s.Equal(CodePayloadTooLarge, code)
	})

	s.Run("reports false for plain errors", func() {
		_, ok := CodeOf(errors.New("plain"))
		s.False(ok)
	})
}
