// Package keyexpr deals with key expressions.
//   - A key expression is a / separated string of segments.
//   - "*" is a single segment wildcard, it matches exactly one segment.
//   - "**" is a multi segment wildcard, it matches zero or more segments.
//   - A key expression without wildcards is concrete and names exactly one key.
//   - A single leading / is accepted (e.g. "/demo/example/**"); it is kept by
//     String but ignored when matching.
package keyexpr

import (
	"errors"
	"strings"
)

const (
	// Segment separator
	SEP = "/"

	// Single segment wildcard
	SWC = "*"

	// Multi segment wildcard
	MWC = "**"

	illegalChars = "?#$"
)

var (
	ErrMalformedKeyExpr = errors.New("malformed key expression")
	ErrEmptyKeyExpr     = errors.New("empty key expression")
	ErrEmptySegment     = errors.New("empty segment")
	ErrIllegalCharacter = errors.New("illegal character")
	ErrDoubledWildcard  = errors.New("ambiguous doubled wildcard")
	ErrWildcardConcat   = errors.New("wildcard concatenated to wildcard")
)

type KeyExpr struct {
	segments []string
	absolute bool
}

func Parse(s string) (KeyExpr, error) {
	if s == "" {
		return KeyExpr{}, malformed(s, ErrEmptyKeyExpr)
	}

	var k KeyExpr
	if strings.HasPrefix(s, SEP) {
		k.absolute = true
		s = s[1:]
	}

	if s == "" {
		return KeyExpr{}, malformed(SEP, ErrEmptySegment)
	}

	k.segments = strings.Split(s, SEP)
	for i, seg := range k.segments {
		if err := checkSegment(seg); err != nil {
			return KeyExpr{}, malformed(k.String(), err)
		}

		if seg == MWC && i > 0 && k.segments[i-1] == MWC {
			return KeyExpr{}, malformed(k.String(), ErrDoubledWildcard)
		}
	}

	return k, nil
}

func MustParse(s string) KeyExpr {
	k, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return k
}

func checkSegment(seg string) error {
	if seg == "" {
		return ErrEmptySegment
	}

	if seg == SWC || seg == MWC {
		return nil
	}

	for _, c := range seg {
		if c < 0x20 || c == 0x7f || strings.ContainsRune(illegalChars, c) {
			return ErrIllegalCharacter
		}

		// wildcards are whole segments only
		if c == '*' {
			return ErrIllegalCharacter
		}
	}

	return nil
}

func malformed(s string, cause error) error {
	return &MalformedError{Expr: s, Cause: cause}
}

type MalformedError struct {
	Expr  string
	Cause error
}

func (e *MalformedError) Error() string {
	return ErrMalformedKeyExpr.Error() + " '" + e.Expr + "': " + e.Cause.Error()
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedKeyExpr
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

func (k KeyExpr) String() string {
	path := k.Path()
	if k.absolute {
		return SEP + path
	}
	return path
}

// Path returns the key expression without its leading separator.
func (k KeyExpr) Path() string {
	return strings.Join(k.segments, SEP)
}

func (k KeyExpr) Segments() []string {
	segments := make([]string, len(k.segments))
	copy(segments, k.segments)
	return segments
}

func (k KeyExpr) IsZero() bool {
	return len(k.segments) == 0
}

func (k KeyExpr) IsConcrete() bool {
	if k.IsZero() {
		return false
	}

	for _, seg := range k.segments {
		if seg == SWC || seg == MWC {
			return false
		}
	}
	return true
}

// Prefix returns the literal path preceding the first wildcard segment,
// terminated by a separator when a wildcard follows.
func (k KeyExpr) Prefix() string {
	var sb strings.Builder
	for i, seg := range k.segments {
		if i > 0 {
			sb.WriteString(SEP)
		}

		if seg == SWC || seg == MWC {
			return sb.String()
		}

		sb.WriteString(seg)
	}
	return sb.String()
}

func (k KeyExpr) Equal(other KeyExpr) bool {
	if len(k.segments) != len(other.segments) {
		return false
	}

	for i := range k.segments {
		if k.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

func (k KeyExpr) Intersects(other KeyExpr) bool {
	return Intersects(k, other)
}

func (k KeyExpr) Includes(other KeyExpr) bool {
	return Includes(k, other)
}

// Join appends suffix as new segments, inserting the separator.
func (k KeyExpr) Join(suffix string) (KeyExpr, error) {
	return Parse(k.String() + SEP + strings.TrimPrefix(suffix, SEP))
}

// Concat appends suffix to the last segment verbatim.
func (k KeyExpr) Concat(suffix string) (KeyExpr, error) {
	if strings.HasSuffix(k.String(), SWC) && strings.HasPrefix(suffix, SWC) {
		return KeyExpr{}, malformed(k.String()+suffix, ErrWildcardConcat)
	}

	return Parse(k.String() + suffix)
}

func (k KeyExpr) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *KeyExpr) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}
