// Package plan implements the core of the plan store: the precondition
// evaluator and the create/read/replace/patch/delete operations built on
// top of it.
//
// Concurrency control is optimistic. The service never locks: each request
// performs exactly one store read, evaluates the client's precondition
// against what it read, and performs at most one store write. Two
// concurrent writers can both pass their precondition check against the
// same stale tag and both write; the protocol detects lost updates as seen
// by each client's own request, it does not prevent them. A store-level
// compare-and-swap would be needed for linearizable behavior.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/planvault/planvault/pkg/etag"
	"github.com/planvault/planvault/pkg/logging"
	"github.com/planvault/planvault/pkg/schema"
	"github.com/planvault/planvault/pkg/store"
)

// keyField is the top-level document field that identifies a plan.
const keyField = "objectId"

// Record pairs a key with its stored document and current entity tag.
// Data holds the canonical serialization; Tag is always derived from Data.
type Record struct {
	Key  string
	Data []byte
	Tag  string
}

// Service orchestrates plan operations against an injected store and
// schema validator.
type Service struct {
	store     store.Store
	validator *schema.Validator
	logger    zerolog.Logger
}

// NewService creates a plan service.
func NewService(st store.Store, validator *schema.Validator) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	return &Service{
		store:     st,
		validator: validator,
		logger:    logging.NewLogger("plan-service"),
	}, nil
}

// Create validates and stores a new plan. The key is taken from the
// document's objectId field. If a record already exists under that key the
// create fails with a ConflictError carrying the existing record.
func (s *Service) Create(ctx context.Context, doc []byte) (Record, error) {
	if violations := s.validator.Validate(doc); violations != nil {
		validationFailures.WithLabelValues("create").Inc()
		return Record{}, &ValidationError{Violations: violations}
	}

	canonical, err := etag.Canonicalize(doc)
	if err != nil {
		// Validation accepts only parseable JSON, so this is unreachable
		// in practice; report it as a validation failure regardless.
		return Record{}, &ValidationError{Violations: []string{err.Error()}}
	}

	key, err := documentKey(canonical)
	if err != nil {
		return Record{}, &ValidationError{Violations: []string{err.Error()}}
	}

	existing, exists, err := s.read(ctx, key)
	if err != nil {
		return Record{}, err
	}

	if decision := EvaluateCreate(exists); decision == Conflict {
		createConflicts.Inc()
		s.logger.Info().Str("key", key).Msg("Create rejected: key already exists")
		return Record{}, &ConflictError{Existing: existing}
	}

	if err := s.store.Set(ctx, key, canonical); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Store write failed")
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record := Record{Key: key, Data: canonical, Tag: etag.Compute(canonical)}
	s.logger.Debug().Str("key", key).Str("etag", record.Tag).Msg("Plan created")
	return record, nil
}

// Get retrieves a plan. When ifNoneMatch matches the current tag the
// returned notModified flag is true and the record carries only the tag,
// telling the caller to answer 304 with an empty body.
func (s *Service) Get(ctx context.Context, key, ifNoneMatch string) (Record, bool, error) {
	record, exists, err := s.read(ctx, key)
	if err != nil {
		return Record{}, false, err
	}

	switch EvaluateRead(exists, record.Tag, ifNoneMatch) {
	case NotFound:
		return Record{}, false, ErrNotFound
	case NotModified:
		notModifiedResponses.Inc()
		s.logger.Debug().Str("key", key).Str("etag", record.Tag).Msg("Read short-circuited: tag unchanged")
		return Record{Key: key, Tag: record.Tag}, true, nil
	default:
		return record, false, nil
	}
}

// Replace overwrites an existing plan wholesale. If-Match is required and
// must match the stored tag. The replacement document must pass schema
// validation and carry the same objectId as the resource key; any failure
// leaves the stored record untouched.
func (s *Service) Replace(ctx context.Context, key, ifMatch string, doc []byte) (Record, error) {
	current, exists, err := s.read(ctx, key)
	if err != nil {
		return Record{}, err
	}

	switch decision := EvaluateWrite(exists, current.Tag, ifMatch); decision {
	case NotFound:
		return Record{}, ErrNotFound
	case PreconditionFailed:
		preconditionFailures.WithLabelValues("replace").Inc()
		s.logger.Info().Str("key", key).Str("etag", current.Tag).Msg("Replace rejected: precondition failed")
		return Record{}, ErrPreconditionFailed
	}

	if violations := s.validator.Validate(doc); violations != nil {
		validationFailures.WithLabelValues("replace").Inc()
		return Record{}, &ValidationError{Violations: violations}
	}

	canonical, err := etag.Canonicalize(doc)
	if err != nil {
		return Record{}, &ValidationError{Violations: []string{err.Error()}}
	}
	if err := matchesKey(canonical, key); err != nil {
		validationFailures.WithLabelValues("replace").Inc()
		return Record{}, &ValidationError{Violations: []string{err.Error()}}
	}

	if err := s.store.Set(ctx, key, canonical); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Store write failed")
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record := Record{Key: key, Data: canonical, Tag: etag.Compute(canonical)}
	s.logger.Debug().Str("key", key).Str("etag", record.Tag).Msg("Plan replaced")
	return record, nil
}

// Patch shallow-merges the given fields into an existing plan: top-level
// keys of the patch overwrite top-level keys of the stored document, and
// nested objects or arrays are replaced wholesale, never deep-merged. The
// merged result is re-validated before the write; on any failure the
// stored record is left untouched.
func (s *Service) Patch(ctx context.Context, key, ifMatch string, patch []byte) (Record, error) {
	current, exists, err := s.read(ctx, key)
	if err != nil {
		return Record{}, err
	}

	switch decision := EvaluateWrite(exists, current.Tag, ifMatch); decision {
	case NotFound:
		return Record{}, ErrNotFound
	case PreconditionFailed:
		preconditionFailures.WithLabelValues("patch").Inc()
		s.logger.Info().Str("key", key).Str("etag", current.Tag).Msg("Patch rejected: precondition failed")
		return Record{}, ErrPreconditionFailed
	}

	merged, err := shallowMerge(current.Data, patch)
	if err != nil {
		validationFailures.WithLabelValues("patch").Inc()
		return Record{}, &ValidationError{Violations: []string{err.Error()}}
	}

	if violations := s.validator.Validate(merged); violations != nil {
		validationFailures.WithLabelValues("patch").Inc()
		return Record{}, &ValidationError{Violations: violations}
	}

	canonical, err := etag.Canonicalize(merged)
	if err != nil {
		return Record{}, &ValidationError{Violations: []string{err.Error()}}
	}
	if err := matchesKey(canonical, key); err != nil {
		validationFailures.WithLabelValues("patch").Inc()
		return Record{}, &ValidationError{Violations: []string{err.Error()}}
	}

	if err := s.store.Set(ctx, key, canonical); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Store write failed")
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record := Record{Key: key, Data: canonical, Tag: etag.Compute(canonical)}
	s.logger.Debug().Str("key", key).Str("etag", record.Tag).Msg("Plan patched")
	return record, nil
}

// Delete removes a plan. If-Match is optional: when supplied it must match
// the stored tag. Deleting an absent key is always ErrNotFound, never a
// silent success.
func (s *Service) Delete(ctx context.Context, key, ifMatch string) error {
	current, exists, err := s.read(ctx, key)
	if err != nil {
		return err
	}

	switch decision := EvaluateDelete(exists, current.Tag, ifMatch); decision {
	case NotFound:
		return ErrNotFound
	case PreconditionFailed:
		preconditionFailures.WithLabelValues("delete").Inc()
		s.logger.Info().Str("key", key).Str("etag", current.Tag).Msg("Delete rejected: precondition failed")
		return ErrPreconditionFailed
	}

	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Removed between our read and the delete.
			return ErrNotFound
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Store delete failed")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug().Str("key", key).Msg("Plan deleted")
	return nil
}

// read performs the single store read every operation starts with. The
// returned record carries the tag recomputed from the stored canonical
// bytes, which is deterministic, so no tag needs to be persisted.
func (s *Service) read(ctx context.Context, key string) (Record, bool, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Record{}, false, nil
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Store read failed")
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Record{Key: key, Data: data, Tag: etag.Compute(data)}, true, nil
}

// documentKey extracts the identifying key field from a document.
func documentKey(doc []byte) (string, error) {
	var envelope struct {
		ObjectID string `json:"objectId"`
	}
	if err := json.Unmarshal(doc, &envelope); err != nil {
		return "", fmt.Errorf("extract %s: %w", keyField, err)
	}
	if envelope.ObjectID == "" {
		return "", fmt.Errorf("document has no %s field", keyField)
	}
	return envelope.ObjectID, nil
}

// matchesKey verifies a document's key field equals the resource key, so a
// replace or patch cannot move a record to a different identity.
func matchesKey(doc []byte, key string) error {
	docKey, err := documentKey(doc)
	if err != nil {
		return err
	}
	if docKey != key {
		return fmt.Errorf("%s %q does not match resource key %q", keyField, docKey, key)
	}
	return nil
}

// shallowMerge overlays the top-level fields of patch onto base. Both must
// be JSON objects. Values are kept as raw JSON so nested structures pass
// through untouched (replaced wholesale when the patch names their key).
func shallowMerge(base, patch []byte) ([]byte, error) {
	var baseFields map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseFields); err != nil {
		return nil, fmt.Errorf("stored document is not an object: %w", err)
	}

	var patchFields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &patchFields); err != nil {
		return nil, fmt.Errorf("patch document is not an object: %w", err)
	}

	for field, value := range patchFields {
		baseFields[field] = value
	}

	merged, err := json.Marshal(baseFields)
	if err != nil {
		return nil, fmt.Errorf("encode merged document: %w", err)
	}
	return merged, nil
}
