package mongodb

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexDefinition is one MongoDB index this platform's collections expect
// to exist. Collection names here must match the names each internal/
// package's ioc registration passes to mongodb.New.
type IndexDefinition struct {
	Collection string
	Name       string
	Keys       bson.D
	Options    *options.IndexOptions
}

// GetAllIndexes returns every index definition the platform relies on for
// correct or performant operation: uniqueness constraints (one wallet per
// owner/currency/category, one config entry per service/brand/tenant/key)
// and the lookup indexes each repository's query patterns assume. The
// sessions (user_id, device_id) index is a plain lookup index, and no index
// sets an expiry.
func GetAllIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			Collection: "users",
			Name:       "idx_users_email_unique",
			Keys:       bson.D{{Key: "email", Value: 1}},
			Options:    options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Collection: "users",
			Name:       "idx_users_username_unique",
			Keys:       bson.D{{Key: "username", Value: 1}},
			Options:    options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Collection: "sessions",
			Name:       "idx_sessions_user_device",
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "device_id", Value: 1},
			},
			Options: options.Index(),
		},
		{
			Collection: "sessions",
			Name:       "idx_sessions_refresh_expires",
			Keys:       bson.D{{Key: "refresh_token_expires_at", Value: 1}},
			Options:    options.Index(),
		},
		{
			Collection: "otp_settings",
			Name:       "idx_otp_settings_user_unique",
			Keys:       bson.D{{Key: "user_id", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},
		{
			Collection: "config_entries",
			Name:       "idx_config_tuple_unique",
			Keys: bson.D{
				{Key: "service", Value: 1},
				{Key: "brand", Value: 1},
				{Key: "tenant_id", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Collection: "ledger_accounts",
			Name:       "idx_ledger_accounts_owner",
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "owner_kind", Value: 1},
				{Key: "subtype", Value: 1},
			},
			Options: options.Index(),
		},
		{
			Collection: "ledger_postings",
			Name:       "idx_ledger_postings_external_ref_unique",
			Keys:       bson.D{{Key: "external_ref", Value: 1}},
			Options:    options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Collection: "ledger_postings",
			Name:       "idx_ledger_postings_accounts",
			Keys: bson.D{
				{Key: "from_account_id", Value: 1},
				{Key: "to_account_id", Value: 1},
			},
			Options: options.Index(),
		},
		{
			Collection: "wallets",
			Name:       "idx_wallets_owner_category_unique",
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "currency", Value: 1},
				{Key: "category", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Collection: "wallet_transfers",
			Name:       "idx_wallet_transfers_idempotency_key_unique",
			Keys:       bson.D{{Key: "idempotency_key", Value: 1}},
			Options:    options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Collection: "bonus_templates",
			Name:       "idx_bonus_templates_code_unique",
			Keys:       bson.D{{Key: "code", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},
		{
			Collection: "user_bonuses",
			Name:       "idx_user_bonuses_user_template",
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "template_code", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index(),
		},
		{
			Collection: "user_bonuses",
			Name:       "idx_user_bonuses_expires_at",
			Keys:       bson.D{{Key: "expires_at", Value: 1}},
			Options:    options.Index(),
		},
		{
			Collection: "notifications",
			Name:       "idx_notifications_user_status",
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index(),
		},
	}
}

// CreateIndexes creates every index GetAllIndexes names, tolerating a
// duplicate-key error for an already-existing index since that's what a
// rerun of this command against an already-migrated database looks like.
func CreateIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	indexes := GetAllIndexes()

	slog.InfoContext(ctx, "creating MongoDB indexes", "total", len(indexes))

	successCount, errorCount := 0, 0
	for _, idx := range indexes {
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: idx.Options.SetName(idx.Name),
		}

		name, err := db.Collection(idx.Collection).Indexes().CreateOne(ctx, model)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				slog.WarnContext(ctx, "index already exists", "collection", idx.Collection, "index", idx.Name)
				successCount++
				continue
			}
			slog.ErrorContext(ctx, "failed to create index", "collection", idx.Collection, "index", idx.Name, "err", err)
			errorCount++
			continue
		}
		slog.InfoContext(ctx, "created index", "collection", idx.Collection, "index", name)
		successCount++
	}

	slog.InfoContext(ctx, "index creation complete", "success", successCount, "errors", errorCount, "total", len(indexes))
	if errorCount > 0 {
		return fmt.Errorf("failed to create %d indexes", errorCount)
	}
	return nil
}

// DropAllIndexes drops every index GetAllIndexes names (the default _id
// index on each collection is untouched).
func DropAllIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	indexes := GetAllIndexes()

	slog.InfoContext(ctx, "dropping MongoDB indexes", "total", len(indexes))

	successCount, errorCount := 0, 0
	for _, idx := range indexes {
		if _, err := db.Collection(idx.Collection).Indexes().DropOne(ctx, idx.Name); err != nil {
			slog.ErrorContext(ctx, "failed to drop index", "collection", idx.Collection, "index", idx.Name, "err", err)
			errorCount++
			continue
		}
		slog.InfoContext(ctx, "dropped index", "collection", idx.Collection, "index", idx.Name)
		successCount++
	}

	slog.InfoContext(ctx, "index drop complete", "success", successCount, "errors", errorCount, "total", len(indexes))
	if errorCount > 0 {
		return fmt.Errorf("failed to drop %d indexes", errorCount)
	}
	return nil
}

// ListIndexes returns the raw index documents MongoDB reports for a collection.
func ListIndexes(ctx context.Context, client *mongo.Client, dbName, collectionName string) ([]bson.M, error) {
	cursor, err := client.Database(dbName).Collection(collectionName).Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer cursor.Close(ctx)

	var indexes []bson.M
	if err := cursor.All(ctx, &indexes); err != nil {
		return nil, fmt.Errorf("failed to decode indexes: %w", err)
	}
	return indexes, nil
}
