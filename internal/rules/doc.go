// Package rules parses and evaluates egg variable rule strings such as
// "required|string|max:20". Each rule is a tagged value; a Set is their
// conjunction and produces one human-readable message per failed rule.
package rules
