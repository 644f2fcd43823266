package multitenantengine

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/tariffs/internal/logger"
	"github.com/liamcoop/tariffs/tariff"
)

// ErrTenantNotFound is returned for a tenant with no loaded engine
var ErrTenantNotFound = errors.New("tenant not found")

// TenantEngine wraps a tariff.Engine with the tenant it serves
type TenantEngine struct {
	Tenant Tenant
	Engine *tariff.Engine
}

// Option configures a MultiTenantEngineManager
type Option func(*MultiTenantEngineManager)

// WithEngineOptions passes options to every tenant engine, e.g. a shared pipeline or recorder
func WithEngineOptions(opts ...tariff.EngineOption) Option {
	return func(m *MultiTenantEngineManager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithRedisCache shares each tenant's active-tariff list through Redis
func WithRedisCache(client redis.Cmdable, config tariff.CacheConfig) Option {
	return func(m *MultiTenantEngineManager) {
		m.newCache = func(tenantID string) tariff.TariffCache {
			return tariff.NewRedisTariffCache(client, tenantID, config)
		}
	}
}

// WithInMemoryCache gives each tenant a process-local cache with the given config
func WithInMemoryCache(config tariff.CacheConfig) Option {
	return func(m *MultiTenantEngineManager) {
		m.newCache = func(string) tariff.TariffCache {
			return tariff.NewInMemoryTariffCache(config)
		}
	}
}

// MultiTenantEngineManager manages engines for all tenants
type MultiTenantEngineManager struct {
	engines    map[string]*TenantEngine
	db         *sql.DB
	engineOpts []tariff.EngineOption
	newCache   func(tenantID string) tariff.TariffCache
	mu         sync.RWMutex
}

// NewMultiTenantEngineManager creates a new manager instance
func NewMultiTenantEngineManager(db *sql.DB, opts ...Option) *MultiTenantEngineManager {
	m := &MultiTenantEngineManager{
		engines: make(map[string]*TenantEngine),
		db:      db,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// newEngine builds an engine over the tenant's PostgreSQL store
func (m *MultiTenantEngineManager) newEngine(tenantID string) (*tariff.Engine, error) {
	opts := append([]tariff.EngineOption{}, m.engineOpts...)
	if m.newCache != nil {
		opts = append(opts, tariff.WithCache(m.newCache(tenantID)))
	}
	return tariff.NewEngine(tariff.NewPostgresTariffStore(m.db, tenantID), opts...)
}

func (m *MultiTenantEngineManager) install(t Tenant) error {
	engine, err := m.newEngine(t.ID)
	if err != nil {
		return fmt.Errorf("failed to create engine for tenant %s: %w", t.ID, err)
	}

	m.mu.Lock()
	m.engines[t.ID] = &TenantEngine{Tenant: t, Engine: engine}
	m.mu.Unlock()
	return nil
}

// LoadAllTenants loads all tenants from the database and initializes their engines
func (m *MultiTenantEngineManager) LoadAllTenants() error {
	rows, err := m.db.Query(`
		SELECT id, name, created_at, updated_at
		FROM tenants
		ORDER BY created_at ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to fetch tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tenant rows: %w", err)
	}

	for _, t := range tenants {
		if err := m.install(t); err != nil {
			return err
		}
	}

	logger.Info("tenants loaded", "count", len(tenants))
	return nil
}

// CreateTenant registers a clinic and starts an empty engine for it
func (m *MultiTenantEngineManager) CreateTenant(name string) (*Tenant, error) {
	if err := ValidateTenantName(name); err != nil {
		return nil, err
	}

	var t Tenant
	err := m.db.QueryRow(`
		INSERT INTO tenants (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, name, created_at, updated_at
	`, name).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	if err := m.install(t); err != nil {
		return nil, err
	}

	logger.Info("tenant created", "tenant", t.ID, "name", t.Name)
	return &t, nil
}

// GetEngine retrieves the engine for a specific tenant
func (m *MultiTenantEngineManager) GetEngine(tenantID string) (*tariff.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	te, exists := m.engines[tenantID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	return te.Engine, nil
}

// ReloadTenant rebuilds a tenant's engine from the database and swaps it in.
// Requests keep using the previous engine until the new one is ready.
func (m *MultiTenantEngineManager) ReloadTenant(tenantID string) error {
	m.mu.RLock()
	te, exists := m.engines[tenantID]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}

	if err := m.install(te.Tenant); err != nil {
		return err
	}

	logger.Info("tenant engine reloaded", "tenant", tenantID)
	return nil
}

// ListTenants returns all loaded tenants, oldest first
func (m *MultiTenantEngineManager) ListTenants() []Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]Tenant, 0, len(m.engines))
	for _, te := range m.engines {
		tenants = append(tenants, te.Tenant)
	}
	sort.Slice(tenants, func(i, j int) bool {
		if tenants[i].CreatedAt.Equal(tenants[j].CreatedAt) {
			return tenants[i].ID < tenants[j].ID
		}
		return tenants[i].CreatedAt.Before(tenants[j].CreatedAt)
	})
	return tenants
}

// DeleteTenant removes a tenant's engine from the manager.
// The tenant and its tariffs stay in the database.
func (m *MultiTenantEngineManager) DeleteTenant(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[tenantID]; !exists {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}

	delete(m.engines, tenantID)
	return nil
}
