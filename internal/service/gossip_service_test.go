package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/halodb/storage-node/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBareGossipService() *GossipService {
	return &GossipService{
		config: &GossipConfig{},
		nodeID: "node-1",
		logger: zap.NewNop(),
		report: model.StartupReport{
			NodeID:    "node-1",
			Status:    model.NodeStatusUnhealthy,
			Timestamp: time.Now().Unix(),
		},
	}
}

func TestGossipService_NodeMetaCarriesStartupReport(t *testing.T) {
	gs := newBareGossipService()
	gs.report = model.StartupReport{
		NodeID:        "node-1",
		Status:        model.NodeStatusHealthy,
		GoodVolumes:   3,
		FailedVolumes: 1,
		Timestamp:     1234,
	}

	meta := gs.NodeMeta(512)

	var report model.StartupReport
	require.NoError(t, json.Unmarshal(meta, &report))
	assert.Equal(t, "node-1", report.NodeID)
	assert.Equal(t, model.NodeStatusHealthy, report.Status)
	assert.Equal(t, 3, report.GoodVolumes)
	assert.Equal(t, 1, report.FailedVolumes)
}

func TestGossipService_NodeMetaRespectsLimit(t *testing.T) {
	gs := newBareGossipService()

	meta := gs.NodeMeta(10)
	assert.LessOrEqual(t, len(meta), 10)
}

func TestGossipService_LocalStateMatchesNodeMeta(t *testing.T) {
	gs := newBareGossipService()

	assert.Equal(t, gs.NodeMeta(1024), gs.LocalState(true))
}
