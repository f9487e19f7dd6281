package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adminconsole/internal/value"
)

// ErrUnknownEntity is returned when a service is requested for an entity
// that has no definition.
var ErrUnknownEntity = errors.New("unknown entity")

// MutationResult is what Create and Update return for outcomes the caller
// can act on: either the document id, or field-keyed messages.
type MutationResult struct {
	OK     bool              `json:"ok"`
	ID     string            `json:"id,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// FieldErrors returns the per-field messages, or nil on success.
func (r MutationResult) FieldErrors() map[string]string {
	if r.OK {
		return nil
	}
	return r.Errors
}

func failed(errs map[string]string) MutationResult {
	return MutationResult{OK: false, Errors: errs}
}

// Service provides list/get/create/update/remove for one entity.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	entity     *Entity
	repository Repository
	metrics    *Metrics
}

// NewService creates a service for entity backed by repository. metrics may be nil.
func NewService(entity *Entity, repository Repository, metrics *Metrics) *Service {
	return &Service{
		entity:     entity,
		repository: repository,
		metrics:    metrics,
	}
}

// Entity returns the definition the service validates against.
func (s *Service) Entity() *Entity {
	return s.entity
}

// Prepare creates the lookup index for the unique field, if any.
func (s *Service) Prepare(ctx context.Context) error {
	if s.entity.Unique == "" {
		return nil
	}
	return s.repository.EnsureIndex(ctx, s.entity.Name, s.entity.Unique)
}

// List returns every document of the entity.
func (s *Service) List(ctx context.Context) ([]*Document, error) {
	start := time.Now()
	docs, err := s.repository.List(ctx, s.entity.Name)
	if err != nil {
		s.metrics.observe(s.entity.Name, "list", OutcomeError, start)
		return nil, fmt.Errorf("list %s: %w", s.entity.Name, err)
	}
	s.metrics.observe(s.entity.Name, "list", OutcomeOK, start)
	return docs, nil
}

// Get returns the document with id, or nil when there is none.
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	start := time.Now()
	doc, err := s.repository.Get(ctx, s.entity.Name, id)
	if err != nil {
		s.metrics.observe(s.entity.Name, "get", OutcomeError, start)
		return nil, fmt.Errorf("get %s/%s: %w", s.entity.Name, id, err)
	}
	if doc == nil {
		s.metrics.observe(s.entity.Name, "get", OutcomeNotFound, start)
		return nil, nil
	}
	s.metrics.observe(s.entity.Name, "get", OutcomeOK, start)
	return doc, nil
}

// Create validates rec and inserts it. Validation and uniqueness failures are
// returned in the result without touching storage; the error is reserved for
// storage failures.
func (s *Service) Create(ctx context.Context, rec value.Record) (MutationResult, error) {
	start := time.Now()

	stored, result, err := s.prepare(ctx, rec, "")
	if err != nil || !result.OK {
		s.metrics.observe(s.entity.Name, "create", outcomeOf(result, err), start)
		return result, err
	}

	doc, err := s.repository.Insert(ctx, s.entity.Name, stored)
	if err != nil {
		s.metrics.observe(s.entity.Name, "create", OutcomeError, start)
		return MutationResult{}, fmt.Errorf("create %s: %w", s.entity.Name, err)
	}

	s.metrics.observe(s.entity.Name, "create", OutcomeOK, start)
	return MutationResult{OK: true, ID: doc.ID}, nil
}

// Update validates rec and replaces every declared field of document id;
// blank optional fields are cleared. The uniqueness check ignores the
// document itself. Returns ErrRecordNotFound when id does not exist.
func (s *Service) Update(ctx context.Context, id string, rec value.Record) (MutationResult, error) {
	start := time.Now()

	stored, result, err := s.prepare(ctx, rec, id)
	if err != nil || !result.OK {
		s.metrics.observe(s.entity.Name, "update", outcomeOf(result, err), start)
		return result, err
	}

	if err := s.repository.Replace(ctx, s.entity.Name, id, stored); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			s.metrics.observe(s.entity.Name, "update", OutcomeNotFound, start)
			return MutationResult{}, err
		}
		s.metrics.observe(s.entity.Name, "update", OutcomeError, start)
		return MutationResult{}, fmt.Errorf("update %s/%s: %w", s.entity.Name, id, err)
	}

	s.metrics.observe(s.entity.Name, "update", OutcomeOK, start)
	return MutationResult{OK: true, ID: id}, nil
}

// Remove deletes document id. Removing a document that does not exist is a no-op.
func (s *Service) Remove(ctx context.Context, id string) error {
	start := time.Now()
	if err := s.repository.Delete(ctx, s.entity.Name, id); err != nil {
		s.metrics.observe(s.entity.Name, "remove", OutcomeError, start)
		return fmt.Errorf("remove %s/%s: %w", s.entity.Name, id, err)
	}
	s.metrics.observe(s.entity.Name, "remove", OutcomeOK, start)
	return nil
}

// prepare runs normalize, validate and the uniqueness check, and returns the
// record in storage shape when all of them pass.
func (s *Service) prepare(ctx context.Context, rec value.Record, excludeID string) (value.Record, MutationResult, error) {
	validated := s.entity.Validate(s.entity.Normalize(rec))
	if !validated.OK {
		return nil, failed(validated.Errors), nil
	}

	conflicts, err := CheckUnique(ctx, s.repository, s.entity, validated.Value, excludeID)
	if err != nil {
		return nil, MutationResult{}, err
	}
	if len(conflicts) > 0 {
		return nil, MutationResult{OK: false, Errors: conflicts}, nil
	}

	return value.APIToStorage(s.entity.Coerce(validated.Value)), MutationResult{OK: true}, nil
}

func outcomeOf(r MutationResult, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case r.OK:
		return OutcomeOK
	}
	for _, msg := range r.Errors {
		if msg == MsgAlreadyInUse {
			return OutcomeConflict
		}
	}
	return OutcomeInvalid
}

// Services holds one Service per entity, keyed by entity name.
type Services map[string]*Service

// NewServices builds a Service for each entity over a shared repository.
func NewServices(entities []*Entity, repository Repository, metrics *Metrics) Services {
	services := make(Services, len(entities))
	for _, e := range entities {
		services[e.Name] = NewService(e, repository, metrics)
	}
	return services
}

// Lookup returns the service for entity.
func (s Services) Lookup(entity string) (*Service, error) {
	svc, ok := s[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return svc, nil
}

// Prepare runs Service.Prepare for every entity.
func (s Services) Prepare(ctx context.Context) error {
	for name, svc := range s {
		if err := svc.Prepare(ctx); err != nil {
			return fmt.Errorf("prepare %s: %w", name, err)
		}
	}
	return nil
}
