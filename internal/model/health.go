package model

// NodeStatus defines the operational status of a node
type NodeStatus string

const (
	NodeStatusHealthy   NodeStatus = "healthy"
	NodeStatusDegraded  NodeStatus = "degraded"
	NodeStatusUnhealthy NodeStatus = "unhealthy"
)

// StartupReport summarizes the startup volume check. It is published as node
// metadata over gossip once the node comes up.
type StartupReport struct {
	NodeID        string     `json:"node_id"`
	Status        NodeStatus `json:"status"`
	GoodVolumes   int        `json:"good_volumes"`
	FailedVolumes int        `json:"failed_volumes"`
	Timestamp     int64      `json:"timestamp"`
}
