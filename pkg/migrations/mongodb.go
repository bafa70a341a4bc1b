package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const FolderRulesCollection = "folder_rules"

// EnsureMongoCollection creates the folder_rules indexes. The collection
// itself is created on first insert.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(FolderRulesCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "folder.trigger", Value: 1}},
			Options: options.Index().SetName("idx_folder_rules_active_trigger"),
		},
		{
			Keys:    bson.D{{Key: "key", Value: 1}, {Key: "scope", Value: 1}, {Key: "target_matcher", Value: 1}},
			Options: options.Index().SetName("idx_folder_rules_slot"),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_folder_rules_updated_at"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
