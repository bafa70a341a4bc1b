package folder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"compass/internal/constants"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/pkg/metrics"
	"compass/pkg/migrations"
)

type Repository interface {
	LoadRules(ctx context.Context) ([]rules.Rule, error)
}

// ruleDocument is the folder_rules collection shape.
type ruleDocument struct {
	ID            interface{}         `bson:"_id"`
	Key           string              `bson:"key"`
	Scope         string              `bson:"scope"`
	TargetMatcher string              `bson:"target_matcher"`
	IsActive      bool                `bson:"is_active"`
	Condition     string              `bson:"condition,omitempty"`
	Folder        rules.FolderPayload `bson:"folder"`
	UpdatedAt     time.Time           `bson:"updated_at"`
}

func (d ruleDocument) toRule() (rules.Rule, error) {
	id, err := formatID(d.ID)
	if err != nil {
		return rules.Rule{}, err
	}
	payload := d.Folder
	return rules.Rule{
		ID:            id,
		Category:      rules.CategoryFolder,
		Scope:         rules.Scope(d.Scope),
		TargetMatcher: d.TargetMatcher,
		IsActive:      d.IsActive,
		Key:           d.Key,
		Condition:     d.Condition,
		Folder:        &payload,
	}, nil
}

func decodeRule(raw bson.Raw) (rules.Rule, error) {
	var doc ruleDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return rules.Rule{}, fmt.Errorf("failed to decode folder rule: %w", err)
	}
	return doc.toRule()
}

func formatID(v interface{}) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case primitive.ObjectID:
		return id.Hex(), nil
	case int32:
		return strconv.FormatInt(int64(id), 10), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	}
	return "", fmt.Errorf("unsupported folder rule _id type %T", v)
}

type MongoRepository struct {
	collection *mongo.Collection
	logger     logger.Logger
}

func NewRepository(db *mongo.Database, log logger.Logger) Repository {
	return &MongoRepository{
		collection: db.Collection(migrations.FolderRulesCollection),
		logger:     log,
	}
}

func (r *MongoRepository) LoadRules(ctx context.Context) (out []rules.Rule, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.IncDatabaseQuery(constants.ServiceFolder, "mongodb", "load_rules", status)
		metrics.ObserveDatabaseQueryDuration(constants.ServiceFolder, "mongodb", "load_rules", time.Since(start))
	}()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query folder rules: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		rule, err := decodeRule(cursor.Current)
		if err != nil {
			r.logger.Warnw("Skipping undecodable folder rule",
				"rule_id", cursor.Current.Lookup("_id").String(),
				"error", err,
			)
			metrics.IncSkippedRecord(constants.ServiceFolder, "rule")
			continue
		}
		out = append(out, rule)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}
	return out, nil
}
