package model

import (
	"fmt"
	"strings"
	"time"
)

// Connection types understood by the router.
const (
	ConnectionTypeLocal = "LOCAL"
	ConnectionTypeHTTP  = "HTTP"
)

// ConnectionParams describes how to reach a garden's forward endpoint.
type ConnectionParams struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	SSL       bool   `json:"ssl"`
	URLPrefix string `json:"url_prefix,omitempty"`
}

// Garden is one node in the federation.
type Garden struct {
	Name             string           `gorm:"primaryKey;size:200" json:"name"`
	Status           string           `gorm:"size:50" json:"status,omitempty"`
	ConnectionType   string           `gorm:"size:50" json:"connection_type,omitempty"`
	ConnectionParams ConnectionParams `gorm:"serializer:json" json:"connection_params"`
	Systems          []System         `gorm:"foreignKey:GardenName;references:Name" json:"systems,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at,omitempty"`
}

// Forwardable reports whether the garden has a configured, non-local connection.
func (g *Garden) Forwardable() bool {
	if g == nil {
		return false
	}
	ct := strings.TrimSpace(g.ConnectionType)
	return ct != "" && !strings.EqualFold(ct, ConnectionTypeLocal)
}

// System is a named, versioned execution unit hosted by one garden.
type System struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	Namespace  string     `gorm:"size:200;index:idx_system_key" json:"namespace"`
	Name       string     `gorm:"size:200;index:idx_system_key" json:"name"`
	Version    string     `gorm:"size:100;index:idx_system_key" json:"version"`
	Local      bool       `gorm:"column:is_local;index" json:"local"`
	GardenName string     `gorm:"size:200;index" json:"garden_name,omitempty"`
	Instances  []Instance `gorm:"foreignKey:SystemID;constraint:OnDelete:CASCADE" json:"instances,omitempty"`
}

// SystemKey renders the routing key for a system identity.
func SystemKey(namespace, name, version string) string {
	return fmt.Sprintf("%s:%s-%s", namespace, name, version)
}

// Key is the system-name routing key.
func (s *System) Key() string {
	return SystemKey(s.Namespace, s.Name, s.Version)
}

func (s *System) String() string {
	return s.Key()
}

// Instance is one individually addressable unit of a System.
type Instance struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	Name     string `gorm:"size:200" json:"name"`
	SystemID string `gorm:"size:64;index" json:"system_id,omitempty"`
}
