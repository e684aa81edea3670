package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/usersvc/usersvc/internal/config"
)

// Checker defines the interface for health checking components
type Checker interface {
	HealthCheck(ctx context.Context) error
	IsCritical() bool // Critical services fail startup if unhealthy
	Name() string
}

// Manager runs the registered checkers
type Manager struct {
	checkers []Checker
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewManager creates a new health manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		checkers: make([]Checker, 0),
		logger:   logger,
	}
}

// AddChecker adds a health checker to the manager
func (h *Manager) AddChecker(checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, checker)
}

// StartupHealthCheck runs every checker and returns an error listing the critical failures
func (h *Manager) StartupHealthCheck(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var criticalFailures []error

	for _, checker := range h.checkers {
		err := checker.HealthCheck(ctx)
		if err != nil {
			if checker.IsCritical() {
				criticalFailures = append(criticalFailures, fmt.Errorf("%s: %w", checker.Name(), err))
				h.logger.Error("Critical service health check failed",
					zap.String("service", checker.Name()),
					zap.Error(err))
			} else {
				h.logger.Warn("Non-critical service health check failed",
					zap.String("service", checker.Name()),
					zap.Error(err))
			}
		} else {
			h.logger.Info("Service health check passed",
				zap.String("service", checker.Name()),
				zap.Bool("critical", checker.IsCritical()))
		}
	}

	if len(criticalFailures) > 0 {
		return fmt.Errorf("critical services failed health check: %v", criticalFailures)
	}

	h.logger.Info("All critical services healthy", zap.Int("total_checks", len(h.checkers)))
	return nil
}

// RuntimeHealthCheck performs health checks during runtime
func (h *Manager) RuntimeHealthCheck(ctx context.Context) map[string]error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make(map[string]error, len(h.checkers))
	for _, checker := range h.checkers {
		results[checker.Name()] = checker.HealthCheck(ctx)
	}

	return results
}

// DatabaseChecker checks a bun database (PostgreSQL or SQLite)
type DatabaseChecker struct {
	db *bun.DB
}

func NewDatabaseChecker(db *bun.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (d *DatabaseChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseChecker) IsCritical() bool {
	return true
}

func (d *DatabaseChecker) Name() string {
	return "database"
}

// MongoChecker pings the primary
type MongoChecker struct {
	client *mongo.Client
}

func NewMongoChecker(client *mongo.Client) *MongoChecker {
	return &MongoChecker{client: client}
}

func (m *MongoChecker) HealthCheck(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoChecker) IsCritical() bool {
	return true
}

func (m *MongoChecker) Name() string {
	return "mongo"
}

// Neo4jChecker verifies driver connectivity
type Neo4jChecker struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jChecker(driver neo4j.DriverWithContext) *Neo4jChecker {
	return &Neo4jChecker{driver: driver}
}

func (n *Neo4jChecker) HealthCheck(ctx context.Context) error {
	return n.driver.VerifyConnectivity(ctx)
}

func (n *Neo4jChecker) IsCritical() bool {
	return true
}

func (n *Neo4jChecker) Name() string {
	return "neo4j"
}

// ConfigChecker checks configuration validity
type ConfigChecker struct {
	config *config.Config
}

func NewConfigChecker(cfg *config.Config) *ConfigChecker {
	return &ConfigChecker{config: cfg}
}

func (c *ConfigChecker) HealthCheck(ctx context.Context) error {
	if c.config == nil {
		return fmt.Errorf("configuration is nil")
	}
	return c.config.Validate()
}

func (c *ConfigChecker) IsCritical() bool {
	return true
}

func (c *ConfigChecker) Name() string {
	return "configuration"
}
