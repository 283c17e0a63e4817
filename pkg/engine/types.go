package engine

import "time"

// Plugin is the registration request sent by a plugin process.
type Plugin struct {
	Name string `json:"name"`
}

type RegisterResponse struct{}

// Registration is one entry of the registry.
type Registration struct {
	Name         string
	RegisteredAt time.Time
}
