// Package port provides port range parsing and first-fit port selection for
// allocations.
//
// # Port Expressions
//
// Operators create allocations with comma-separated ports and ranges:
//
//	ports, err := port.Parse("25565-25570,27015")
//
// Ports must lie within PortMin..PortMax and one expression may expand to
// at most MaxPortsPerRequest ports.
//
// # Allocation Strategy
//
// Ports are chosen first-fit: the lowest unused port in the range wins.
// FreePorts lists the candidates in that order so a caller that loses a
// port to a concurrent insert moves on to the next one:
//
//	for _, p := range port.FreePorts(port.Range{From: 25565, To: 25665}, usedPorts) {
//	    ...
//	}
package port
