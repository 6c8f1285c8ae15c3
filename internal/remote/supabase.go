package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

const (
	transactionsTable = "transactions"
	categoriesTable   = "categories"
)

// Gateway is the remote store boundary: filtered pulls and upsert-by-id
// pushes, always partitioned by the authenticated user id.
type Gateway interface {
	PullCategories(ctx context.Context, userID string, since *time.Time) ([]CategoryRow, error)
	PullTransactions(ctx context.Context, userID string, since *time.Time) ([]TransactionRow, error)
	PushCategories(ctx context.Context, rows []CategoryRow) error
	PushTransactions(ctx context.Context, rows []TransactionRow) error
}

// SupabaseGateway implements Gateway against a Supabase project.
type SupabaseGateway struct {
	client *supabase.Client
}

func NewSupabaseGateway(url, key string) (*SupabaseGateway, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &SupabaseGateway{client: client}, nil
}

// PullCategories fetches the user's categories that are not soft-deleted
// remotely. A nil since means a full pull.
func (g *SupabaseGateway) PullCategories(ctx context.Context, userID string, since *time.Time) ([]CategoryRow, error) {
	query := g.client.From(categoriesTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Is("deleted_at", "null")
	if since != nil {
		query = query.Gt("updated_at", since.UTC().Format(time.RFC3339))
	}
	data, _, err := query.Order("updated_at.asc", nil).Execute()
	if err != nil {
		return nil, fmt.Errorf("pull categories: %w", err)
	}

	var rows []CategoryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	return rows, nil
}

// PullTransactions fetches the user's transactions, tombstones included.
// A non-nil since restricts the pull to rows changed after it.
func (g *SupabaseGateway) PullTransactions(ctx context.Context, userID string, since *time.Time) ([]TransactionRow, error) {
	query := g.client.From(transactionsTable).
		Select("*", "", false).
		Eq("user_id", userID)
	if since != nil {
		query = query.Gt("updated_at", since.UTC().Format(time.RFC3339))
	}
	data, _, err := query.Order("updated_at.asc", nil).Execute()
	if err != nil {
		return nil, fmt.Errorf("pull transactions: %w", err)
	}

	var rows []TransactionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse transactions: %w", err)
	}
	return rows, nil
}

// PushCategories upserts rows keyed by id.
func (g *SupabaseGateway) PushCategories(ctx context.Context, rows []CategoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	_, _, err := g.client.From(categoriesTable).
		Insert(rows, true, "id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("push categories: %w", err)
	}
	return nil
}

// PushTransactions upserts rows keyed by id.
func (g *SupabaseGateway) PushTransactions(ctx context.Context, rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	_, _, err := g.client.From(transactionsTable).
		Insert(rows, true, "id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("push transactions: %w", err)
	}
	return nil
}
