package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies a rule.
type Kind int

const (
	Required Kind = iota
	Nullable
	Sometimes
	String
	Numeric
	Integer
	Boolean
	AlphaNum
	AlphaDash
	OneOf
	Pattern
	Min
	Max
	Size
	Between
)

var kindsByName = map[string]Kind{
	"required":   Required,
	"nullable":   Nullable,
	"sometimes":  Sometimes,
	"string":     String,
	"numeric":    Numeric,
	"integer":    Integer,
	"int":        Integer,
	"boolean":    Boolean,
	"bool":       Boolean,
	"alpha_num":  AlphaNum,
	"alpha_dash": AlphaDash,
	"in":         OneOf,
	"regex":      Pattern,
	"min":        Min,
	"max":        Max,
	"size":       Size,
	"between":    Between,
}

// Rule is one parsed constraint. Only the fields for its Kind are set.
type Rule struct {
	Kind    Kind
	Values  []string
	Pattern *regexp.Regexp
	Bound   float64
	Upper   float64
}

// Set is a conjunction of rules parsed from one rule string.
type Set struct {
	rules []Rule
}

// Has reports whether the set contains a rule of kind k.
func (s *Set) Has(k Kind) bool {
	return slices.ContainsFunc(s.rules, func(r Rule) bool { return r.Kind == k })
}

// numericContext reports whether size rules compare values instead of
// string lengths.
func (s *Set) numericContext() bool {
	return s.Has(Numeric) || s.Has(Integer)
}

var (
	alphaNumRe  = regexp.MustCompile(`^[\pL\pM\pN]+$`)
	alphaDashRe = regexp.MustCompile(`^[\pL\pM\pN_-]+$`)
)

// Check evaluates value against every rule and returns one message per
// failed rule, in rule order. An empty value fails only "required"; when the
// set is not required or is nullable, an empty value passes.
func (s *Set) Check(attribute, value string) []string {
	if value == "" {
		if s.Has(Required) && !s.Has(Nullable) {
			return []string{fmt.Sprintf("The %s field is required.", attribute)}
		}
		return nil
	}

	numeric := s.numericContext()
	var msgs []string
	for _, r := range s.rules {
		if msg, ok := r.check(attribute, value, numeric); !ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (r Rule) check(attr, value string, numeric bool) (string, bool) {
	switch r.Kind {
	case Required, Nullable, Sometimes, String:
		return "", true

	case Numeric:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("The %s must be a number.", attr), false
		}

	case Integer:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Sprintf("The %s must be an integer.", attr), false
		}

	case Boolean:
		switch strings.ToLower(value) {
		case "1", "0", "true", "false":
		default:
			return fmt.Sprintf("The %s field must be true or false.", attr), false
		}

	case AlphaNum:
		if !alphaNumRe.MatchString(value) {
			return fmt.Sprintf("The %s may only contain letters and numbers.", attr), false
		}

	case AlphaDash:
		if !alphaDashRe.MatchString(value) {
			return fmt.Sprintf("The %s may only contain letters, numbers, dashes and underscores.", attr), false
		}

	case OneOf:
		if !slices.Contains(r.Values, value) {
			return fmt.Sprintf("The selected %s is invalid.", attr), false
		}

	case Pattern:
		if !r.Pattern.MatchString(value) {
			return fmt.Sprintf("The %s format is invalid.", attr), false
		}

	case Min:
		if n, ok := measure(value, numeric); !ok || n < r.Bound {
			return sizeMessage("must be at least %s", attr, numeric, r.Bound), false
		}

	case Max:
		if n, ok := measure(value, numeric); !ok || n > r.Bound {
			return sizeMessage("may not be greater than %s", attr, numeric, r.Bound), false
		}

	case Size:
		if n, ok := measure(value, numeric); !ok || n != r.Bound {
			return sizeMessage("must be %s", attr, numeric, r.Bound), false
		}

	case Between:
		if n, ok := measure(value, numeric); !ok || n < r.Bound || n > r.Upper {
			bounds := fmt.Sprintf("between %s and %s", formatBound(r.Bound), formatBound(r.Upper))
			if numeric {
				return fmt.Sprintf("The %s must be %s.", attr, bounds), false
			}
			return fmt.Sprintf("The %s must be %s characters.", attr, bounds), false
		}
	}
	return "", true
}

// measure returns the numeric value or the character count of value.
func measure(value string, numeric bool) (float64, bool) {
	if numeric {
		n, err := strconv.ParseFloat(value, 64)
		return n, err == nil
	}
	return float64(utf8.RuneCountInString(value)), true
}

func sizeMessage(format, attr string, numeric bool, bound float64) string {
	msg := fmt.Sprintf("The %s "+format, attr, formatBound(bound))
	if numeric {
		return msg + "."
	}
	return msg + " characters."
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
