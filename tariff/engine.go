package tariff

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTariffDisabled is returned when evaluating a tariff that is not active
var ErrTariffDisabled = errors.New("tariff is disabled")

// Recorder receives the outcome of every engine evaluation
type Recorder interface {
	ObserveEvaluation(tariffID string, ev *Evaluation, elapsed time.Duration, err error)
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCache replaces the default in-memory active-tariff cache
func WithCache(c TariffCache) EngineOption {
	return func(en *Engine) {
		if c != nil {
			en.cache = c
		}
	}
}

// WithPipeline sets the pipeline used for evaluation
func WithPipeline(p *Pipeline) EngineOption {
	return func(en *Engine) {
		if p != nil {
			en.pipeline = p
		}
	}
}

// WithRecorder attaches an evaluation recorder, e.g. metrics
func WithRecorder(r Recorder) EngineOption {
	return func(en *Engine) {
		en.recorder = r
	}
}

// Engine keeps tariffs from a store resolved and ready to evaluate.
// It is safe for concurrent use; each evaluation works on its own basket copy.
type Engine struct {
	store    TariffStore
	cache    TariffCache
	pipeline *Pipeline
	recorder Recorder
	compiled map[string]*Compiled // tariffID -> resolved conditions
	mu       sync.RWMutex
}

// NewEngine creates an engine and resolves every active tariff in the store
func NewEngine(store TariffStore, opts ...EngineOption) (*Engine, error) {
	en := &Engine{
		store:    store,
		cache:    NewInMemoryTariffCache(DefaultCacheConfig()),
		pipeline: NewPipeline(),
		compiled: make(map[string]*Compiled),
	}
	for _, opt := range opts {
		opt(en)
	}

	if err := en.CompileAllTariffs(); err != nil {
		return nil, fmt.Errorf("failed to compile tariffs: %w", err)
	}

	return en, nil
}

// CompileTariff resolves a tariff's conditions and caches the result
func (en *Engine) CompileTariff(t *Tariff) error {
	_, err := en.compile(t)
	return err
}

// compile caches and returns the resolved form of t
func (en *Engine) compile(t *Tariff) (*Compiled, error) {
	c, err := Compile(t)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	en.mu.Lock()
	en.compiled[t.ID] = c
	en.mu.Unlock()

	return c, nil
}

// CompileAllTariffs compiles all active tariffs from the store and primes the cache
func (en *Engine) CompileAllTariffs() error {
	tariffs, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, t := range tariffs {
		if err := en.CompileTariff(t); err != nil {
			return fmt.Errorf("failed to compile tariff %s: %w", t.ID, err)
		}
	}

	en.cache.Set(tariffs)

	return nil
}

// AddTariff validates, compiles and stores a new tariff. An empty ID is
// replaced with a generated UUID.
func (en *Engine) AddTariff(t *Tariff) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if _, err := en.store.Get(t.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrTariffExists, t.ID)
	}

	if err := ValidateTariff(t); err != nil {
		return fmt.Errorf("tariff validation failed: %w", err)
	}
	if err := en.CompileTariff(t); err != nil {
		return fmt.Errorf("tariff validation failed: %w", err)
	}

	if err := en.store.Add(t); err != nil {
		en.mu.Lock()
		delete(en.compiled, t.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// UpdateTariff validates and recompiles a tariff before storing it
func (en *Engine) UpdateTariff(t *Tariff) error {
	if err := ValidateTariff(t); err != nil {
		return fmt.Errorf("tariff validation failed: %w", err)
	}
	c, err := Compile(t)
	if err != nil {
		return fmt.Errorf("tariff validation failed: %w", err)
	}

	if err := en.store.Update(t); err != nil {
		return err
	}

	en.mu.Lock()
	en.compiled[t.ID] = c
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// DeleteTariff removes a tariff from the store and the compiled set
func (en *Engine) DeleteTariff(id string) error {
	if err := en.store.Delete(id); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.compiled, id)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// GetTariff returns a stored tariff
func (en *Engine) GetTariff(id string) (*Tariff, error) {
	return en.store.Get(id)
}

// ActiveTariffs lists active tariffs, served from cache when possible
func (en *Engine) ActiveTariffs() ([]*Tariff, error) {
	if tariffs := en.cache.Get(); tariffs != nil {
		return tariffs, nil
	}

	tariffs, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	en.cache.Set(tariffs)
	return tariffs, nil
}

// compiledFor returns the resolved form of an active tariff, compiling it on first use
func (en *Engine) compiledFor(id string) (*Compiled, error) {
	t, err := en.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: %s", ErrTariffDisabled, id)
	}

	en.mu.RLock()
	c, ok := en.compiled[id]
	en.mu.RUnlock()
	if ok {
		return c, nil
	}

	// The returned value stays valid even if a concurrent delete drops the cache entry
	return en.compile(t)
}

// Evaluate runs the applicability pipeline for one tariff on a copy of basket
func (en *Engine) Evaluate(tariffID string, patient Person, basket Basket) (*Evaluation, error) {
	start := time.Now()

	ev, err := en.evaluate(tariffID, patient, basket)
	if en.recorder != nil {
		en.recorder.ObserveEvaluation(tariffID, ev, time.Since(start), err)
	}
	return ev, err
}

func (en *Engine) evaluate(tariffID string, patient Person, basket Basket) (*Evaluation, error) {
	c, err := en.compiledFor(tariffID)
	if err != nil {
		return nil, err
	}
	return en.pipeline.Evaluate(patient, basket, c)
}
