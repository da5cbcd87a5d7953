package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parse reads a pipe-separated rule string such as
// "required|string|max:20" or "nullable|regex:/^(1|2)\d*$/".
func Parse(s string) (*Set, error) {
	set := &Set{}
	for _, segment := range splitRules(s) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		rule, err := parseRule(segment)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", segment, err)
		}
		set.rules = append(set.rules, rule)
	}
	return set, nil
}

// splitRules splits on "|" but keeps a regex: pattern whole when the
// pattern itself contains "|".
func splitRules(s string) []string {
	parts := strings.Split(s, "|")
	var out []string
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		if strings.HasPrefix(strings.TrimSpace(part), "regex:") {
			for !patternClosed(strings.TrimPrefix(strings.TrimSpace(part), "regex:")) && i+1 < len(parts) {
				i++
				part += "|" + parts[i]
			}
		}
		out = append(out, part)
	}
	return out
}

const patternFlags = "imsxuADSUXJ"

// patternClosed reports whether a delimited pattern like /abc/i has its
// closing delimiter.
func patternClosed(p string) bool {
	if len(p) < 2 {
		return false
	}
	delim := p[0]
	end := strings.LastIndexByte(p[1:], delim)
	if end < 0 {
		return false
	}
	return strings.Trim(p[end+2:], patternFlags) == ""
}

func parseRule(segment string) (Rule, error) {
	name, arg, hasArg := strings.Cut(segment, ":")
	kind, ok := kindsByName[name]
	if !ok {
		return Rule{}, fmt.Errorf("unknown rule %q", name)
	}
	rule := Rule{Kind: kind}

	switch kind {
	case OneOf:
		if !hasArg || arg == "" {
			return Rule{}, fmt.Errorf("in requires a list of values")
		}
		rule.Values = strings.Split(arg, ",")
	case Pattern:
		re, err := compilePattern(arg)
		if err != nil {
			return Rule{}, err
		}
		rule.Pattern = re
	case Min, Max, Size:
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return Rule{}, fmt.Errorf("%s requires a number", name)
		}
		rule.Bound = n
	case Between:
		lo, hi, ok := strings.Cut(arg, ",")
		if !ok {
			return Rule{}, fmt.Errorf("between requires two numbers")
		}
		var err error
		if rule.Bound, err = strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil {
			return Rule{}, fmt.Errorf("between requires two numbers")
		}
		if rule.Upper, err = strconv.ParseFloat(strings.TrimSpace(hi), 64); err != nil {
			return Rule{}, fmt.Errorf("between requires two numbers")
		}
	default:
		if hasArg {
			return Rule{}, fmt.Errorf("%s takes no argument", name)
		}
	}
	return rule, nil
}

// compilePattern turns a delimited pattern (/expr/flags) into a Go regexp.
func compilePattern(p string) (*regexp.Regexp, error) {
	if !patternClosed(p) {
		return nil, fmt.Errorf("regex must be delimited, e.g. /^[a-z]+$/")
	}
	end := strings.LastIndexByte(p[1:], p[0]) + 1
	expr, flags := p[1:end], p[end+1:]

	var prefix string
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			prefix += string(f)
		case 'u', 'D', 'S':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", f)
		}
	}
	if prefix != "" {
		expr = "(?" + prefix + ")" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return re, nil
}
