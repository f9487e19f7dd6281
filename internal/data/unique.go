package data

import (
	"context"
	"fmt"

	"adminconsole/internal/value"
)

// CheckUnique looks up documents sharing rec's value for the entity's unique
// field. Any match other than excludeID is a conflict, reported as a field
// error keyed by the unique field. Entities without a unique field always pass.
//
// The lookup and the write that follows it are separate operations, so two
// concurrent writers of the same value can both pass.
func CheckUnique(ctx context.Context, repo Repository, e *Entity, rec value.Record, excludeID string) (map[string]string, error) {
	if e.Unique == "" {
		return nil, nil
	}

	candidate := e.Coerce(rec).Get(e.Unique)
	if candidate.Kind() != value.KindNumber {
		// Only reached for records that skipped validation; there is nothing to compare.
		return nil, nil
	}

	existing, err := repo.FindByField(ctx, e.Name, e.Unique, candidate)
	if err != nil {
		return nil, fmt.Errorf("check %s.%s uniqueness: %w", e.Name, e.Unique, err)
	}

	for _, doc := range existing {
		if excludeID == "" || doc.ID != excludeID {
			return map[string]string{e.Unique: MsgAlreadyInUse}, nil
		}
	}
	return nil, nil
}
