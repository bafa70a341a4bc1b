package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/config"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/internal/ruleset"
	"compass/pkg/cel"
)

type staticLoader []rules.Rule

func (l staticLoader) LoadRules(context.Context) ([]rules.Rule, error) { return l, nil }

func testRules() []rules.Rule {
	return []rules.Rule{
		{ID: "1", Category: rules.CategoryReminder, Scope: rules.ScopeGlobal, TargetMatcher: rules.Wildcard, IsActive: true,
			Reminder: &rules.ReminderPayload{Tokens: []string{"T-7"}}},
		{ID: "2", Category: rules.CategoryReminder, Scope: rules.ScopeCategory, TargetMatcher: "GST", IsActive: true,
			Reminder: &rules.ReminderPayload{Tokens: []string{"T-15", "T-1", "D+2"}}},
		{ID: "3", Category: rules.CategoryReminder, Scope: rules.ScopeSubcategory, TargetMatcher: "GSTR-1", IsActive: true,
			Condition: `target.entity_type == "llp"`,
			Reminder:  &rules.ReminderPayload{Tokens: []string{"T-30"}}},
		{ID: "10", Category: rules.CategoryRetention, Scope: rules.ScopeGlobal, TargetMatcher: rules.Wildcard, IsActive: true,
			Retention: &rules.RetentionPayload{Period: 1, Unit: rules.UnitMonths, Action: rules.ActionArchive}},
		{ID: "20", Category: rules.CategoryFolder, Scope: rules.ScopeGlobal, TargetMatcher: rules.Wildcard, IsActive: true, Key: "returns",
			Folder: &rules.FolderPayload{Trigger: rules.EventComplianceHeadCreated, PathTemplate: "/{{compliance_head}}/{{financial_year}}", AccessLevel: rules.AccessRestricted}},
		{ID: "21", Category: rules.CategoryFolder, Scope: rules.ScopeGlobal, TargetMatcher: rules.Wildcard, IsActive: true, Key: "notices",
			Folder: &rules.FolderPayload{Trigger: rules.EventComplianceHeadCreated, PathTemplate: "/{{entity}}/Notices", AccessLevel: rules.AccessPrivate}},
	}
}

func newRouter(t *testing.T, loaded []rules.Rule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ruleset.NewStore(staticLoader(loaded), config.ReloadConfig{}, nil, logger.NopLogger())
	if loaded != nil {
		require.NoError(t, store.ReloadRules(context.Background(), true))
	}
	ev, err := cel.NewEvaluator()
	require.NoError(t, err)

	now := time.Date(2025, time.February, 10, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, ev, WithClock(func() time.Time { return now }))

	router := gin.New()
	NewHandler(svc, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func post(t *testing.T, router *gin.Engine, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestResolveEndpoint(t *testing.T) {
	router := newRouter(t, testRules())

	tests := []struct {
		name     string
		body     interface{}
		status   int
		wantRule string
	}{
		{
			name:     "category beats global",
			body:     map[string]interface{}{"category": "reminder", "target": map[string]interface{}{"category_name": "GST", "subcategory_name": "GSTR-3B"}},
			status:   http.StatusOK,
			wantRule: "2",
		},
		{
			name: "condition admits subcategory rule",
			body: map[string]interface{}{"category": "reminder", "target": map[string]interface{}{
				"category_name": "GST", "subcategory_name": "GSTR-1", "attributes": map[string]string{"entity_type": "llp"}}},
			status:   http.StatusOK,
			wantRule: "3",
		},
		{
			name:     "condition rejects subcategory rule",
			body:     map[string]interface{}{"category": "reminder", "target": map[string]interface{}{"category_name": "GST", "subcategory_name": "GSTR-1"}},
			status:   http.StatusOK,
			wantRule: "2",
		},
		{
			name:   "unknown category",
			body:   map[string]interface{}{"category": "audit"},
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed json",
			body:   `{"category":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := post(t, router, "/api/v1/resolve", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.wantRule == "" {
				assert.Equal(t, "VALIDATION_ERROR", out["error_code"])
				return
			}
			assert.Equal(t, true, out["found"])
			assert.Equal(t, tt.wantRule, out["rule"].(map[string]interface{})["id"])
		})
	}
}

func TestResolveEndpoint_NotLoaded(t *testing.T) {
	router := newRouter(t, nil)
	w, out := post(t, router, "/api/v1/resolve", map[string]interface{}{"category": "reminder"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", out["error_code"])
}

func TestPreviewRemindersEndpoint(t *testing.T) {
	router := newRouter(t, testRules())

	t.Run("resolved rule", func(t *testing.T) {
		w, out := post(t, router, "/api/v1/reminders/preview", map[string]interface{}{
			"target":   map[string]interface{}{"id": "task-1", "category_name": "GST"},
			"due_date": "2025-06-20",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "2", out["rule_id"])

		events := out["events"].([]interface{})
		require.Len(t, events, 3)
		var dates []string
		for _, e := range events {
			dates = append(dates, e.(map[string]interface{})["firing_date"].(string))
		}
		assert.Equal(t, []string{"2025-06-05", "2025-06-19", "2025-06-22"}, dates)
	})

	t.Run("window", func(t *testing.T) {
		w, out := post(t, router, "/api/v1/reminders/preview", map[string]interface{}{
			"target":   map[string]interface{}{"category_name": "GST"},
			"due_date": "2025-06-20",
			"from":     "2025-06-10",
			"to":       "2025-06-20",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, out["events"], 1)
	})

	t.Run("adhoc invalid token", func(t *testing.T) {
		w, out := post(t, router, "/api/v1/reminders/preview", map[string]interface{}{
			"due_date": "2025-06-20",
			"tokens":   []string{"T-7", "T-07"},
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "INVALID_TOKEN", out["error_code"])
		assert.Equal(t, "T-07", out["details"].(map[string]interface{})["token"])
	})

	t.Run("adhoc empty tokens", func(t *testing.T) {
		w, out := post(t, router, "/api/v1/reminders/preview", map[string]interface{}{
			"due_date": "2025-06-20",
			"tokens":   []string{},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, out["events"])
	})

	t.Run("missing due date", func(t *testing.T) {
		w, _ := post(t, router, "/api/v1/reminders/preview", map[string]interface{}{"tokens": []string{"T-1"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNextRetentionEndpoint(t *testing.T) {
	router := newRouter(t, testRules())

	t.Run("resolved rule clamps and chains", func(t *testing.T) {
		w, out := post(t, router, "/api/v1/retention/next", map[string]interface{}{
			"target":      map[string]interface{}{"id": "doc-1"},
			"anchor":      "2025-01-31",
			"occurrences": 3,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "10", out["rule_id"])

		var dates []string
		for _, e := range out["events"].([]interface{}) {
			ev := e.(map[string]interface{})
			assert.Equal(t, "archive", ev["action"])
			dates = append(dates, ev["firing_date"].(string))
		}
		assert.Equal(t, []string{"2025-02-28", "2025-03-28", "2025-04-28"}, dates)
	})

	t.Run("adhoc invalid period", func(t *testing.T) {
		w, out := post(t, router, "/api/v1/retention/next", map[string]interface{}{
			"anchor":    "2025-01-31",
			"retention": map[string]interface{}{"period": 0, "unit": "days", "action": "delete"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "INVALID_PERIOD", out["error_code"])
	})

	t.Run("too many occurrences", func(t *testing.T) {
		w, _ := post(t, router, "/api/v1/retention/next", map[string]interface{}{"anchor": "2025-01-31", "occurrences": 500})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPreviewFoldersEndpoint(t *testing.T) {
	router := newRouter(t, testRules())

	w, out := post(t, router, "/api/v1/folders/preview", map[string]interface{}{
		"event_type": "compliance-head-created",
		"context":    map[string]string{"compliance_head": "GST", "year": "1999"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	vars := out["variables"].(map[string]interface{})
	assert.Equal(t, "2025", vars["year"])
	assert.Equal(t, "2024-25", vars["financial_year"])

	outcomes := out["outcomes"].([]interface{})
	require.Len(t, outcomes, 2)

	notices := outcomes[0].(map[string]interface{})
	assert.Equal(t, "notices", notices["key"])
	assert.Equal(t, "UNRESOLVED_VARIABLE", notices["error"].(map[string]interface{})["error_code"])

	returns := outcomes[1].(map[string]interface{})
	assert.Equal(t, "/GST/2024-25", returns["request"].(map[string]interface{})["path"])

	w, _ = post(t, router, "/api/v1/folders/preview", map[string]interface{}{"event_type": "region-created"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateRuleEndpoint(t *testing.T) {
	router := newRouter(t, testRules())

	tests := []struct {
		name       string
		rule       map[string]interface{}
		status     int
		wantFields []string
	}{
		{
			name: "valid reminder",
			rule: map[string]interface{}{"id": "9", "category": "reminder", "scope": "category", "target_matcher": "GST", "is_active": true,
				"reminder": map[string]interface{}{"tokens": []string{"T-7", "D+1"}}},
			status: http.StatusOK,
		},
		{
			name: "global with exact matcher and bad token",
			rule: map[string]interface{}{"id": "9", "category": "reminder", "scope": "global", "target_matcher": "GST",
				"reminder": map[string]interface{}{"tokens": []string{"T-7", "X+1"}}},
			status:     http.StatusUnprocessableEntity,
			wantFields: []string{"target_matcher", "reminder.tokens[1]"},
		},
		{
			name: "bad retention",
			rule: map[string]interface{}{"id": "9", "category": "retention", "scope": "global", "target_matcher": "*",
				"retention": map[string]interface{}{"period": 1, "unit": "weeks", "action": "shred"}},
			status:     http.StatusUnprocessableEntity,
			wantFields: []string{"retention.unit", "retention.action"},
		},
		{
			name: "bad folder and condition",
			rule: map[string]interface{}{"id": "9", "category": "folder", "scope": "global", "target_matcher": "*",
				"condition": `compliance_head + 1`,
				"folder":    map[string]interface{}{"trigger": "entity-created", "path_template": "/{{entity", "access_level": "secret"}},
			status:     http.StatusUnprocessableEntity,
			wantFields: []string{"condition", "key", "folder.path_template", "folder.access_level"},
		},
		{
			name: "payload does not match category",
			rule: map[string]interface{}{"id": "9", "category": "folder", "scope": "global", "target_matcher": "*",
				"reminder": map[string]interface{}{"tokens": []string{"T-1"}}},
			status:     http.StatusUnprocessableEntity,
			wantFields: []string{"category"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := post(t, router, "/api/v1/rules/validate", tt.rule)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.status == http.StatusOK, out["valid"])

			var fields []string
			if errs, ok := out["errors"].([]interface{}); ok {
				for _, e := range errs {
					fields = append(fields, e.(map[string]interface{})["field"].(string))
				}
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestConditionExamplesEndpoint(t *testing.T) {
	router := newRouter(t, testRules())
	ev, err := cel.NewEvaluator()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/conditions/examples", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var examples map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &examples))
	require.NotEmpty(t, examples)
	for name, expr := range examples {
		assert.NoError(t, ev.ValidateCondition(expr), name)
	}
}
