// Package model defines the records hearth-ctl stores and passes between
// packages. Types here carry no behavior beyond small derived accessors.
package model

import (
	"fmt"
	"time"
)

// Node is a machine running the daemon.
type Node struct {
	ID           int64  `json:"id"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	FQDN         string `json:"fqdn"`
	Scheme       string `json:"scheme"`
	DaemonPort   int    `json:"daemon_port"`
	DaemonToken  string `json:"-"`
	AllocationIP string `json:"allocation_ip"`
	PortStart    int    `json:"port_start,omitempty"`
	PortEnd      int    `json:"port_end,omitempty"`
	Memory       int64  `json:"memory"`
	Disk         int64  `json:"disk"`
}

// DaemonURL returns the base URL of the node's daemon.
func (n *Node) DaemonURL() string {
	scheme := n.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, n.FQDN, n.DaemonPort)
}

// HasPortRange reports whether the node overrides the configured range.
func (n *Node) HasPortRange() bool {
	return n.PortStart > 0 && n.PortEnd >= n.PortStart
}

// User owns servers.
type User struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	ExternalID string    `json:"external_id,omitempty"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	RootAdmin  bool      `json:"root_admin"`
	CreatedAt  time.Time `json:"created_at"`
}

// Egg is a server type template.
type Egg struct {
	ID           int64                `json:"id"`
	UUID         string               `json:"uuid"`
	Author       string               `json:"author"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Startup      string               `json:"startup"`
	DefaultImage string               `json:"docker_image"`
	Variables    []VariableDefinition `json:"variables"`
}

// VariableDefinition is one configurable environment variable of an egg.
type VariableDefinition struct {
	ID           int64  `json:"id"`
	EggID        int64  `json:"egg_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	EnvVariable  string `json:"env_variable"`
	DefaultValue string `json:"default_value"`
	Rules        string `json:"rules"`
	UserViewable bool   `json:"user_viewable"`
	UserEditable bool   `json:"user_editable"`
	Sort         int    `json:"sort"`
}

// ServerVariable is a resolved variable value for one server.
type ServerVariable struct {
	ServerID    int64  `json:"server_id"`
	VariableID  int64  `json:"variable_id"`
	EnvVariable string `json:"env_variable"`
	Value       string `json:"server_value"`
}

// Allocation is an IP and port on a node. ServerID is nil while free.
type Allocation struct {
	ID       int64   `json:"id"`
	NodeID   int64   `json:"node_id"`
	IP       string  `json:"ip"`
	Alias    string  `json:"ip_alias,omitempty"`
	Port     int     `json:"port"`
	Notes    *string `json:"notes"`
	ServerID *int64  `json:"server_id"`
	Primary  bool    `json:"is_default"`
}

// IsFree reports whether no server holds the allocation.
func (a *Allocation) IsFree() bool {
	return a.ServerID == nil
}

// OwnedBy reports whether serverID holds the allocation.
func (a *Allocation) OwnedBy(serverID int64) bool {
	return a.ServerID != nil && *a.ServerID == serverID
}

// Address returns ip:port, preferring the alias.
func (a *Allocation) Address() string {
	host := a.IP
	if a.Alias != "" {
		host = a.Alias
	}
	return fmt.Sprintf("%s:%d", host, a.Port)
}

// Limits are the resource limits of a server. Memory, swap, and disk are in
// MiB; -1 swap means unlimited.
type Limits struct {
	Memory    int64 `json:"memory"`
	Swap      int64 `json:"swap"`
	Disk      int64 `json:"disk"`
	IO        int64 `json:"io"`
	CPU       int64 `json:"cpu"`
	OOMKiller bool  `json:"oom_killer"`
}

// FeatureLimits bound the extras a server may create.
type FeatureLimits struct {
	Databases   int `json:"databases"`
	Allocations int `json:"allocations"`
	Backups     int `json:"backups"`
}

// Server is a provisioned game server.
type Server struct {
	ID            int64            `json:"id"`
	UUID          string           `json:"uuid"`
	UUIDShort     string           `json:"identifier"`
	ExternalID    string           `json:"external_id,omitempty"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	OwnerID       int64            `json:"user"`
	NodeID        int64            `json:"node"`
	EggID         int64            `json:"egg"`
	AllocationID  int64            `json:"allocation"`
	Limits        Limits           `json:"limits"`
	FeatureLimits FeatureLimits    `json:"feature_limits"`
	Startup       string           `json:"startup"`
	Image         string           `json:"image"`
	Suspended     bool             `json:"suspended"`
	CreatedAt     time.Time        `json:"created_at"`
	Allocations   []Allocation     `json:"allocations,omitempty"`
	Variables     []ServerVariable `json:"variables,omitempty"`
}

// PrimaryAllocation returns the loaded primary allocation, if any.
func (s *Server) PrimaryAllocation() *Allocation {
	for i := range s.Allocations {
		if s.Allocations[i].ID == s.AllocationID {
			return &s.Allocations[i]
		}
	}
	return nil
}

// Environment returns the resolved variables as a key/value map.
func (s *Server) Environment() map[string]string {
	env := make(map[string]string, len(s.Variables))
	for _, v := range s.Variables {
		env[v.EnvVariable] = v.Value
	}
	return env
}

// Deployment carries allocation hints for a single creation request. Ports
// are candidates for one allocation, not ports to claim. It is never stored.
type Deployment struct {
	Dedicated bool  `json:"dedicated_ip"`
	Ports     []int `json:"port_range"`
}
