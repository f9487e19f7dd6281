// Package data provides circuit breaker wrapper for Repository.
// Implements database resilience with circuit breaker pattern and graceful degradation.
package data

import (
	"context"
	"encoding/json"
	"fmt"

	"adminconsole/internal/jsonlog"
	"adminconsole/internal/value"
)

// CircuitBreakerRepository wraps a Repository with circuit breaker protection
type CircuitBreakerRepository struct {
	repository     Repository
	circuitBreaker *CircuitBreaker
	logger         *jsonlog.Logger
}

// NewCircuitBreakerRepository creates a new circuit breaker protected repository
func NewCircuitBreakerRepository(repository Repository, config CircuitBreakerConfig, logger *jsonlog.Logger) *CircuitBreakerRepository {
	cb := NewCircuitBreaker(config)

	cb.SetHealthChecker(func(ctx context.Context) error {
		_, err := repository.Health(ctx)
		return err
	})

	return &CircuitBreakerRepository{
		repository:     repository,
		circuitBreaker: cb,
		logger:         logger,
	}
}

func (cbr *CircuitBreakerRepository) call(ctx context.Context, operation, table string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := cbr.circuitBreaker.Call(ctx, fn)
	if err != nil && cbr.circuitBreaker.failed(err) {
		state := cbr.circuitBreaker.GetStats()
		cbr.logger.WarnWithContext(ctx, "repository operation failed",
			"error", err,
			"circuit_breaker_state", state.State.String(),
			"failures", state.Failures,
			"operation", operation,
			"table", table)
	}
	return result, err
}

// Insert implements Repository.Insert with circuit breaker protection
func (cbr *CircuitBreakerRepository) Insert(ctx context.Context, table string, fields value.Record) (*Document, error) {
	result, err := cbr.call(ctx, "Insert", table, func(ctx context.Context) (interface{}, error) {
		return cbr.repository.Insert(ctx, table, fields)
	})
	if err != nil {
		return nil, err
	}

	if doc, ok := result.(*Document); ok {
		return doc, nil
	}
	return nil, fmt.Errorf("unexpected result type from Insert operation")
}

// Get implements Repository.Get with circuit breaker protection
func (cbr *CircuitBreakerRepository) Get(ctx context.Context, table, id string) (*Document, error) {
	result, err := cbr.call(ctx, "Get", table, func(ctx context.Context) (interface{}, error) {
		return cbr.repository.Get(ctx, table, id)
	})
	if err != nil {
		return nil, err
	}

	doc, ok := result.(*Document)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from Get operation")
	}
	// a typed nil pointer means the document does not exist
	return doc, nil
}

// List implements Repository.List with circuit breaker protection
func (cbr *CircuitBreakerRepository) List(ctx context.Context, table string) ([]*Document, error) {
	result, err := cbr.call(ctx, "List", table, func(ctx context.Context) (interface{}, error) {
		return cbr.repository.List(ctx, table)
	})
	if err != nil {
		return nil, err
	}

	if docs, ok := result.([]*Document); ok {
		return docs, nil
	}
	return nil, fmt.Errorf("unexpected result type from List operation")
}

// Replace implements Repository.Replace with circuit breaker protection
func (cbr *CircuitBreakerRepository) Replace(ctx context.Context, table, id string, fields value.Record) error {
	_, err := cbr.call(ctx, "Replace", table, func(ctx context.Context) (interface{}, error) {
		return nil, cbr.repository.Replace(ctx, table, id, fields)
	})
	return err
}

// Delete implements Repository.Delete with circuit breaker protection
func (cbr *CircuitBreakerRepository) Delete(ctx context.Context, table, id string) error {
	_, err := cbr.call(ctx, "Delete", table, func(ctx context.Context) (interface{}, error) {
		return nil, cbr.repository.Delete(ctx, table, id)
	})
	return err
}

// FindByField implements Repository.FindByField with circuit breaker protection
func (cbr *CircuitBreakerRepository) FindByField(ctx context.Context, table, field string, v value.Value) ([]*Document, error) {
	result, err := cbr.call(ctx, "FindByField", table, func(ctx context.Context) (interface{}, error) {
		return cbr.repository.FindByField(ctx, table, field, v)
	})
	if err != nil {
		return nil, err
	}

	if docs, ok := result.([]*Document); ok {
		return docs, nil
	}
	return nil, fmt.Errorf("unexpected result type from FindByField operation")
}

// EnsureIndex implements Repository.EnsureIndex. Schema work runs at startup
// and bypasses the breaker.
func (cbr *CircuitBreakerRepository) EnsureIndex(ctx context.Context, table, field string) error {
	return cbr.repository.EnsureIndex(ctx, table, field)
}

// Health implements Repository.Health and adds the breaker state.
func (cbr *CircuitBreakerRepository) Health(ctx context.Context) (map[string]interface{}, error) {
	health, err := cbr.repository.Health(ctx)
	if health == nil {
		health = map[string]interface{}{}
	}
	health["circuit_breaker_state"] = cbr.circuitBreaker.GetStats().State.String()
	return health, err
}

// Close implements Repository.Close
func (cbr *CircuitBreakerRepository) Close() error {
	return cbr.repository.Close()
}

// GetCircuitBreakerStats returns current circuit breaker statistics for monitoring
func (cbr *CircuitBreakerRepository) GetCircuitBreakerStats() CircuitBreakerStats {
	return cbr.circuitBreaker.GetStats()
}

// String implements fmt.Stringer for debugging
func (cbr *CircuitBreakerRepository) String() string {
	state := cbr.circuitBreaker.GetStats()
	stateJSON, _ := json.Marshal(state)
	return fmt.Sprintf("CircuitBreakerRepository{state=%s}", string(stateJSON))
}

// Compile-time verification that CircuitBreakerRepository implements Repository
var _ Repository = (*CircuitBreakerRepository)(nil)
