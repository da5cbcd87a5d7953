package provision

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
)

const maxNameLength = 191

// CreateOptions holds all options for creating a server.
type CreateOptions struct {
	// Name is the server name (required)
	Name string

	// Description is free text shown to the owner (optional)
	Description string

	// ExternalID links the server to a record in another system (optional)
	ExternalID string

	// OwnerID, NodeID and EggID must reference existing rows (required)
	OwnerID int64
	NodeID  int64
	EggID   int64

	// Memory and Swap are in MiB; -1 means unlimited
	Memory int64
	Swap   int64

	// Disk is in MiB, IO is the block IO weight, CPU is a percentage
	Disk int64
	IO   int64
	CPU  int64

	// OOMKiller enables the out-of-memory killer for the container
	OOMKiller bool

	// Startup is the startup command template (required)
	Startup string

	// Image is the container image (required)
	Image string

	// Environment holds submitted egg variable values by env key
	Environment map[string]string

	// Ports requests specific ports on the node. The first one becomes the
	// primary allocation. Overrides Deployment.Ports when set.
	Ports []int

	// StartOnCompletion asks the daemon to start the server once installed
	StartOnCompletion bool

	DatabaseLimit   int
	AllocationLimit int
	BackupLimit     int
}

func (o *CreateOptions) limits() model.Limits {
	return model.Limits{
		Memory:    o.Memory,
		Swap:      o.Swap,
		Disk:      o.Disk,
		IO:        o.IO,
		CPU:       o.CPU,
		OOMKiller: o.OOMKiller,
	}
}

func (o *CreateOptions) featureLimits() model.FeatureLimits {
	return model.FeatureLimits{
		Databases:   o.DatabaseLimit,
		Allocations: o.AllocationLimit,
		Backups:     o.BackupLimit,
	}
}

// validate adds a message to verr for every attribute that is out of bounds.
// References to other rows are checked by the Creator.
func (o *CreateOptions) validate(verr *errors.ValidationError) {
	switch {
	case strings.TrimSpace(o.Name) == "":
		verr.Add("name", "The name field is required.")
	case utf8.RuneCountInString(o.Name) > maxNameLength:
		verr.Add("name", fmt.Sprintf("The name may not be greater than %d characters.", maxNameLength))
	}

	for _, f := range []struct {
		field string
		value int64
		min   int64
	}{
		{"memory", o.Memory, -1},
		{"swap", o.Swap, -1},
		{"disk", o.Disk, 0},
		{"io", o.IO, 0},
		{"cpu", o.CPU, 0},
	} {
		if f.value < f.min {
			verr.Add(f.field, fmt.Sprintf("The %s must be at least %d.", f.field, f.min))
		}
	}

	for _, f := range []struct {
		field string
		value int
	}{
		{"feature_limits.databases", o.DatabaseLimit},
		{"feature_limits.allocations", o.AllocationLimit},
		{"feature_limits.backups", o.BackupLimit},
	} {
		if f.value < 0 {
			verr.Add(f.field, fmt.Sprintf("The %s must be at least 0.", f.field))
		}
	}

	if strings.TrimSpace(o.Startup) == "" {
		verr.Add("startup", "The startup field is required.")
	}
	if strings.TrimSpace(o.Image) == "" {
		verr.Add("image", "The image field is required.")
	}

	validatePorts("ports", o.Ports, verr)
}

func validatePorts(field string, ports []int, verr *errors.ValidationError) {
	seen := make(map[int]bool, len(ports))
	for i, p := range ports {
		key := fmt.Sprintf("%s.%d", field, i)
		if p < 1024 || p > 65535 {
			verr.Add(key, fmt.Sprintf("The %s must be between 1024 and 65535.", key))
		}
		if seen[p] {
			verr.Add(key, fmt.Sprintf("The %s field has a duplicate value.", key))
		}
		seen[p] = true
	}
}
