package catalog

import "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"

type AddTypeInput struct {
	Code        string
	Title       string
	Label       string
	Kind        observation.Kind
	CauseLabels []string
	ProductIDs  []uint64
}

// SyncReport counts what Sync had to create.
type SyncReport struct {
	Products int `json:"products"`
	Configs  int `json:"configs"`
	Types    int `json:"types"`
	Causes   int `json:"causes"`
	Links    int `json:"links"`
}
