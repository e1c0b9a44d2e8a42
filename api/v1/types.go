// Package v1 holds the wire types of the admin/telemetry API.
package v1

import (
	"github.com/openwatch/netmon-server/internal/models"
)

// StatsResponse carries the self-monitoring moving averages.
type StatsResponse struct {
	// QueueAverages maps queue name to its one-minute average depth.
	QueueAverages map[string]float64 `json:"queueAverages"`
	// AvgQueuingTimeSeconds is the one-minute average wall-clock cost of a
	// scheduler tick.
	AvgQueuingTimeSeconds float64 `json:"avgQueuingTimeSeconds"`
}

// ItemResponse describes one collection item.
type ItemResponse struct {
	ID            uint32 `json:"id"`
	GUID          string `json:"guid"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Origin        string `json:"origin"`
	Status        string `json:"status"`
	OwnerID       uint32 `json:"ownerId"`
	LastPoll      int64  `json:"lastPoll"`
	ErrorCount    uint32 `json:"errorCount"`
	ForcePollSent bool   `json:"forcePollSent,omitempty"`
}

// ParameterDefinition is one entry of the merged supported-parameter
// catalog.
type ParameterDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"dataType,omitempty"`
}

// NewParameterCatalog converts the model catalog to wire form.
func NewParameterCatalog(defs []models.ParameterDefinition) []ParameterDefinition {
	out := make([]ParameterDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, ParameterDefinition{
			Name:        d.Name,
			Description: d.Description,
			DataType:    d.DataType,
		})
	}
	return out
}
