package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/halodb/storage-node/internal/model"
	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"
)

// GossipService manages cluster membership and propagates the node's startup
// check outcome as member metadata. The node joins the cluster only after its
// volume check has passed.
type GossipService struct {
	config     *GossipConfig
	memberlist *memberlist.Memberlist
	nodeID     string
	logger     *zap.Logger

	mu     sync.RWMutex
	report model.StartupReport
}

// GossipConfig holds gossip protocol configuration
type GossipConfig struct {
	BindPort       int
	SeedNodes      []string
	GossipInterval time.Duration
	ProbeTimeout   time.Duration
	ProbeInterval  time.Duration
}

// NewGossipService creates a gossip service. It binds the gossip port but
// does not join any seed nodes until Join is called.
func NewGossipService(cfg *GossipConfig, nodeID string, logger *zap.Logger) (*GossipService, error) {
	gs := &GossipService{
		config: cfg,
		nodeID: nodeID,
		logger: logger,
		report: model.StartupReport{
			NodeID:    nodeID,
			Status:    model.NodeStatusUnhealthy,
			Timestamp: time.Now().Unix(),
		},
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = nodeID
	mlConfig.BindPort = cfg.BindPort
	mlConfig.GossipInterval = cfg.GossipInterval
	mlConfig.ProbeTimeout = cfg.ProbeTimeout
	mlConfig.ProbeInterval = cfg.ProbeInterval
	mlConfig.Delegate = gs
	mlConfig.Events = &GossipEventDelegate{service: gs}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}

	gs.memberlist = ml
	return gs, nil
}

// Join joins the configured seed nodes. Called once the startup check has
// passed and the node is willing to be seen by the cluster.
func (s *GossipService) Join() error {
	if len(s.config.SeedNodes) == 0 {
		return nil
	}
	n, err := s.memberlist.Join(s.config.SeedNodes)
	if err != nil {
		return fmt.Errorf("failed to join seed nodes: %w", err)
	}
	s.logger.Info("Joined gossip cluster", zap.Int("contacted", n))
	return nil
}

// PublishStartupReport records the startup check outcome and pushes the
// updated metadata to the cluster.
func (s *GossipService) PublishStartupReport(report model.StartupReport) {
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	if err := s.memberlist.UpdateNode(time.Second); err != nil {
		s.logger.Warn("Failed to broadcast startup report", zap.Error(err))
	}
}

// NodeMeta implements memberlist.Delegate
func (s *GossipService) NodeMeta(limit int) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.Marshal(s.report)
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

// NotifyMsg implements memberlist.Delegate
func (s *GossipService) NotifyMsg(data []byte) {
	var report model.StartupReport
	if err := json.Unmarshal(data, &report); err != nil {
		s.logger.Warn("Failed to unmarshal gossip message", zap.Error(err))
		return
	}

	s.logger.Debug("Received startup report",
		zap.String("node_id", report.NodeID),
		zap.String("status", string(report.Status)),
		zap.Int("good_volumes", report.GoodVolumes))
}

// GetBroadcasts implements memberlist.Delegate
func (s *GossipService) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState implements memberlist.Delegate
func (s *GossipService) LocalState(join bool) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.Marshal(s.report)
	return data
}

// MergeRemoteState implements memberlist.Delegate
func (s *GossipService) MergeRemoteState(buf []byte, join bool) {
	// No-op; startup reports travel as node metadata.
}

// Shutdown leaves the cluster and shuts the gossip layer down.
func (s *GossipService) Shutdown() error {
	if err := s.memberlist.Leave(time.Second); err != nil {
		s.logger.Warn("Failed to leave gossip cluster", zap.Error(err))
	}
	return s.memberlist.Shutdown()
}

// GossipEventDelegate handles memberlist events
type GossipEventDelegate struct {
	service *GossipService
}

// NotifyJoin is called when a node joins
func (d *GossipEventDelegate) NotifyJoin(node *memberlist.Node) {
	d.service.logger.Info("Node joined",
		zap.String("node_id", node.Name),
		zap.String("addr", node.Addr.String()))
}

// NotifyLeave is called when a node leaves
func (d *GossipEventDelegate) NotifyLeave(node *memberlist.Node) {
	d.service.logger.Info("Node left",
		zap.String("node_id", node.Name))
}

// NotifyUpdate is called when a node's metadata changes
func (d *GossipEventDelegate) NotifyUpdate(node *memberlist.Node) {
	d.service.logger.Debug("Node updated",
		zap.String("node_id", node.Name))
}
