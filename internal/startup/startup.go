// Package startup renders a server's startup command from its egg template.
package startup

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

// placeholder matches {{KEY}} and {{env.KEY}}, with optional inner spaces.
var placeholder = regexp.MustCompile(`\{\{\s*(?:env\.)?([A-Za-z0-9_]+)\s*\}\}`)

// Render replaces every placeholder whose key is in env. Unknown
// placeholders are left as they are.
func Render(template string, env map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := env[key]; ok {
			return v
		}
		return m
	})
}

// Placeholders returns the keys referenced by template, in order of first use.
func Placeholders(template string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Environment returns the variables available to a server's startup
// command: its egg variables plus SERVER_MEMORY, SERVER_IP and SERVER_PORT.
// Relations must be loaded.
func Environment(server *model.Server) map[string]string {
	env := server.Environment()
	env["SERVER_MEMORY"] = strconv.FormatInt(server.Limits.Memory, 10)
	if a := server.PrimaryAllocation(); a != nil {
		env["SERVER_IP"] = a.IP
		env["SERVER_PORT"] = strconv.Itoa(a.Port)
	}
	return env
}

// Argv renders the server's startup command and splits it into arguments
// the way a POSIX shell would.
func Argv(server *model.Server) ([]string, error) {
	cmd := Render(server.Startup, Environment(server))
	argv, err := shellquote.Split(cmd)
	if err != nil {
		return nil, fmt.Errorf("invalid startup command %q: %w", cmd, err)
	}
	return argv, nil
}

// Preview returns the rendered startup command with normalized quoting.
func Preview(server *model.Server) (string, error) {
	argv, err := Argv(server)
	if err != nil {
		return "", err
	}
	return shellquote.Join(argv...), nil
}

// Check reports whether template still splits into arguments after its
// placeholders are filled with defaults.
func Check(template string, defaults map[string]string) error {
	if _, err := shellquote.Split(Render(template, defaults)); err != nil {
		return fmt.Errorf("startup command does not parse: %w", err)
	}
	return nil
}
