package point

import "context"

type Repository interface {
	Get(ctx context.Context, userID string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	// Update persists the account only while the stored version still matches
	// account.Version; otherwise it fails with ErrVersionConflict.
	Update(ctx context.Context, account *Account) error
}

type HistoryRepository interface {
	Append(ctx context.Context, history *History) error
	ListByUser(ctx context.Context, userID string) ([]*History, error)
}
