package port

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Bounds of usable allocation ports.
const (
	PortMin = 1024
	PortMax = 65535

	// MaxPortsPerRequest caps how many ports one range expression may expand to.
	MaxPortsPerRequest = 1000
)

// Range is an inclusive port range.
type Range struct {
	From int
	To   int
}

// Validate checks that the range is ordered and inside PortMin..PortMax.
func (r Range) Validate() error {
	if r.From < PortMin || r.To > PortMax {
		return fmt.Errorf("port range %d-%d must lie within %d-%d", r.From, r.To, PortMin, PortMax)
	}
	if r.From > r.To {
		return fmt.Errorf("port range %d-%d is inverted", r.From, r.To)
	}
	return nil
}

// Len returns the number of ports in the range.
func (r Range) Len() int {
	return r.To - r.From + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Parse expands a port expression such as "25565", "25565-25570", or
// "25565,27015-27020" into a sorted list of unique ports.
func Parse(expr string) ([]int, error) {
	seen := make(map[int]bool)
	var ports []int

	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		r, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		if len(ports)+r.Len() > MaxPortsPerRequest {
			return nil, fmt.Errorf("port expression %q expands to more than %d ports", expr, MaxPortsPerRequest)
		}

		for p := r.From; p <= r.To; p++ {
			if !seen[p] {
				seen[p] = true
				ports = append(ports, p)
			}
		}
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports in expression %q", expr)
	}
	sort.Ints(ports)
	return ports, nil
}

func parseRange(part string) (Range, error) {
	lo, hi, isRange := strings.Cut(part, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Range{}, fmt.Errorf("invalid port %q", part)
	}
	to := from
	if isRange {
		if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return Range{}, fmt.Errorf("invalid port range %q", part)
		}
	}
	r := Range{From: from, To: to}
	return r, r.Validate()
}

// FreePorts returns the ports of r absent from used, in ascending order.
// Callers that may lose a race for a port walk this list.
func FreePorts(r Range, used []int) []int {
	taken := make(map[int]bool, len(used))
	for _, p := range used {
		taken[p] = true
	}

	var free []int
	for p := r.From; p <= r.To; p++ {
		if !taken[p] {
			free = append(free, p)
		}
	}
	return free
}
