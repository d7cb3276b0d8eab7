package models

import (
	"time"
)

// Resource is a dataset or data group minted by an external path and attached
// to expeditions here. Prefix is the externally registered BCID prefix
// (e.g. "ark:/21547/R2"); a resource may be attached to many expeditions.
type Resource struct {
	ID           int64     `json:"id"`
	Prefix       string    `json:"prefix"`
	ResourceType string    `json:"resource_type,omitempty"` // type URI
	WebAddress   string    `json:"web_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
