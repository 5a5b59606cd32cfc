package inventory

import "context"

type Repository interface {
	Get(ctx context.Context, optionID string) (*ProductOption, error)
	Create(ctx context.Context, option *ProductOption) error
	// Update persists the option only while the stored version still matches
	// option.Version; otherwise it fails with ErrVersionConflict and the caller
	// is expected to re-read and retry.
	Update(ctx context.Context, option *ProductOption) error
}
