package api

import (
	"strings"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/port"
	"github.com/hearth-panel/hearth-ctl/internal/provision"
)

// createServerRequest is the body of POST /api/application/servers.
type createServerRequest struct {
	ExternalID  string            `json:"external_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	User        int64             `json:"user"`
	Node        int64             `json:"node"`
	Egg         int64             `json:"egg"`
	DockerImage string            `json:"docker_image"`
	Startup     string            `json:"startup"`
	Environment map[string]string `json:"environment"`
	Limits      struct {
		Memory    int64 `json:"memory"`
		Swap      int64 `json:"swap"`
		Disk      int64 `json:"disk"`
		IO        int64 `json:"io"`
		CPU       int64 `json:"cpu"`
		OOMKiller bool  `json:"oom_killer"`
	} `json:"limits"`
	FeatureLimits struct {
		Databases   int `json:"databases"`
		Allocations int `json:"allocations"`
		Backups     int `json:"backups"`
	} `json:"feature_limits"`
	Ports             []int          `json:"ports"`
	Deploy            *deployRequest `json:"deploy"`
	StartOnCompletion bool           `json:"start_on_completion"`
}

// deployRequest carries allocation hints. Port ranges are expressions such
// as "25565" or "25565-25570".
type deployRequest struct {
	DedicatedIP bool     `json:"dedicated_ip"`
	PortRange   []string `json:"port_range"`
}

func (r *createServerRequest) options() provision.CreateOptions {
	return provision.CreateOptions{
		ExternalID:        r.ExternalID,
		Name:              r.Name,
		Description:       r.Description,
		OwnerID:           r.User,
		NodeID:            r.Node,
		EggID:             r.Egg,
		Memory:            r.Limits.Memory,
		Swap:              r.Limits.Swap,
		Disk:              r.Limits.Disk,
		IO:                r.Limits.IO,
		CPU:               r.Limits.CPU,
		OOMKiller:         r.Limits.OOMKiller,
		Startup:           r.Startup,
		Image:             r.DockerImage,
		Environment:       r.Environment,
		Ports:             r.Ports,
		StartOnCompletion: r.StartOnCompletion,
		DatabaseLimit:     r.FeatureLimits.Databases,
		AllocationLimit:   r.FeatureLimits.Allocations,
		BackupLimit:       r.FeatureLimits.Backups,
	}
}

func (r *createServerRequest) deployment() (*model.Deployment, error) {
	if r.Deploy == nil {
		return nil, nil
	}
	d := &model.Deployment{Dedicated: r.Deploy.DedicatedIP}
	if len(r.Deploy.PortRange) > 0 {
		ports, err := port.Parse(strings.Join(r.Deploy.PortRange, ","))
		if err != nil {
			verr := errors.NewValidationError()
			verr.Add("deploy.port_range", err.Error())
			return nil, verr
		}
		d.Ports = ports
	}
	return d, nil
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// object wraps a resource the way every response of this API does.
func object(kind string, attributes any) map[string]any {
	return map[string]any{"object": kind, "attributes": attributes}
}
