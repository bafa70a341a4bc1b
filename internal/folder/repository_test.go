package folder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"compass/internal/rules"
)

func TestRuleDocument_ToRule(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		name   string
		id     interface{}
		wantID string
	}{
		{name: "string id", id: "rule-7", wantID: "rule-7"},
		{name: "object id", id: oid, wantID: oid.Hex()},
		{name: "int32 id", id: int32(12), wantID: "12"},
		{name: "int64 id", id: int64(13), wantID: "13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ruleDocument{
				ID: tt.id, Key: "returns", Scope: "category", TargetMatcher: "GST", IsActive: true,
				Folder: rules.FolderPayload{Trigger: rules.EventComplianceHeadCreated, PathTemplate: "/{{compliance_head}}", AccessLevel: rules.AccessPrivate},
			}
			rule, err := doc.toRule()
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, rule.ID)
			assert.Equal(t, rules.CategoryFolder, rule.Category)
			assert.Equal(t, rules.ScopeCategory, rule.Scope)
			require.NotNil(t, rule.Folder)
			assert.NoError(t, rule.CheckShape())
		})
	}

	_, err := ruleDocument{ID: 1.5}.toRule()
	assert.Error(t, err)
}

func TestDecodeRule(t *testing.T) {
	folderDoc := bson.M{"trigger": "entity-created", "path_template": "/{{entity}}", "access_level": "private"}

	tests := []struct {
		name    string
		doc     bson.M
		wantID  string
		wantErr bool
	}{
		{
			name:   "well formed",
			doc:    bson.M{"_id": "notices", "key": "notices", "scope": "global", "target_matcher": "*", "is_active": true, "folder": folderDoc},
			wantID: "notices",
		},
		{
			name:    "unsupported id type",
			doc:     bson.M{"_id": 1.5, "key": "notices", "scope": "global", "target_matcher": "*", "folder": folderDoc},
			wantErr: true,
		},
		{
			name:    "field of the wrong type",
			doc:     bson.M{"_id": "flag", "key": "notices", "scope": "global", "target_matcher": "*", "is_active": "yes", "folder": folderDoc},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.doc)
			require.NoError(t, err)

			rule, err := decodeRule(raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, rule.ID)
			assert.Equal(t, rules.EventEntityCreated, rule.Folder.Trigger)
		})
	}
}
