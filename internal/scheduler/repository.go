package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"

	"compass/internal/constants"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/pkg/metrics"
	"compass/pkg/models"
)

type Repository interface {
	LoadRules(ctx context.Context) ([]rules.Rule, error)
	OpenTasks(ctx context.Context) ([]Task, error)
	Documents(ctx context.Context) ([]Document, error)
	// RecordExecution stores a retention execution report. It reports false
	// when the same execution was already recorded.
	RecordExecution(ctx context.Context, report models.RetentionExecutionReport) (bool, error)
}

type PostgresRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) Repository {
	return &PostgresRepository{db: db, logger: log}
}

// track records one query; call as defer track("op")(&err).
func track(operation string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		status := "success"
		if *errp != nil {
			status = "error"
		}
		metrics.IncDatabaseQuery(constants.ServiceScheduler, "postgres", operation, status)
		metrics.ObserveDatabaseQueryDuration(constants.ServiceScheduler, "postgres", operation, time.Since(start))
	}
}

func (r *PostgresRepository) LoadRules(ctx context.Context) (out []rules.Rule, err error) {
	defer track("load_rules")(&err)

	query := `
		SELECT id, category, scope, target_matcher, is_active, condition, payload
		FROM schedule_rules
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			rule    rules.Rule
			payload []byte
		)
		if err := rows.Scan(
			&id,
			&rule.Category,
			&rule.Scope,
			&rule.TargetMatcher,
			&rule.IsActive,
			&rule.Condition,
			&payload,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule rule: %w", err)
		}
		rule.ID = strconv.FormatInt(id, 10)

		if err := decodeRulePayload(&rule, payload); err != nil {
			r.logger.Warnw("Skipping schedule rule with undecodable payload",
				"rule_id", rule.ID,
				"category", rule.Category,
				"error", err,
			)
			metrics.IncSkippedRecord(constants.ServiceScheduler, "rule")
			continue
		}
		out = append(out, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func decodeRulePayload(rule *rules.Rule, payload []byte) error {
	switch rule.Category {
	case rules.CategoryReminder:
		rule.Reminder = &rules.ReminderPayload{}
		if err := json.Unmarshal(payload, rule.Reminder); err != nil {
			return fmt.Errorf("rule %s: invalid reminder payload: %w", rule.ID, err)
		}
	case rules.CategoryRetention:
		rule.Retention = &rules.RetentionPayload{}
		if err := json.Unmarshal(payload, rule.Retention); err != nil {
			return fmt.Errorf("rule %s: invalid retention payload: %w", rule.ID, err)
		}
	default:
		return fmt.Errorf("rule %s: unsupported category %q", rule.ID, rule.Category)
	}
	return nil
}

func (r *PostgresRepository) OpenTasks(ctx context.Context) (out []Task, err error) {
	defer track("open_tasks")(&err)

	query := `
		SELECT id, compliance_head, sub_head, entity, due_date, attributes
		FROM compliance_tasks
		WHERE status = 'open'
		ORDER BY due_date, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			task  Task
			due   time.Time
			attrs []byte
		)
		if err := rows.Scan(
			&task.Target.ID,
			&task.Target.CategoryName,
			&task.Target.SubcategoryName,
			&task.Target.EntityName,
			&due,
			&attrs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.DueDate = civil.DateOf(due)
		task.Target.Attributes, task.Err = decodeAttributes(attrs)
		if task.Err != nil {
			metrics.IncSkippedRecord(constants.ServiceScheduler, "task")
		}
		out = append(out, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Documents(ctx context.Context) (out []Document, err error) {
	defer track("documents")(&err)

	query := `
		SELECT id, compliance_head, sub_head, entity, document_type, uploaded_on, attributes
		FROM documents
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var (
			doc      Document
			uploaded time.Time
			attrs    []byte
		)
		if err := rows.Scan(
			&doc.Target.ID,
			&doc.Target.CategoryName,
			&doc.Target.SubcategoryName,
			&doc.Target.EntityName,
			&doc.Target.DocumentTypeName,
			&uploaded,
			&attrs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.UploadedOn = civil.DateOf(uploaded)
		doc.Target.Attributes, doc.Err = decodeAttributes(attrs)
		if doc.Err != nil {
			metrics.IncSkippedRecord(constants.ServiceScheduler, "document")
		}
		index[doc.Target.ID] = len(out)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if err := r.attachExecutions(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) attachExecutions(ctx context.Context, docs []Document, index map[string]int) error {
	query := `
		SELECT DISTINCT ON (rule_id, document_id) rule_id, document_id, executed_on
		FROM retention_executions
		ORDER BY rule_id, document_id, executed_on DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query retention executions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ruleID, docID string
			executed      time.Time
		)
		if err := rows.Scan(&ruleID, &docID, &executed); err != nil {
			return fmt.Errorf("failed to scan retention execution: %w", err)
		}
		i, ok := index[docID]
		if !ok {
			continue
		}
		if docs[i].LastExecuted == nil {
			docs[i].LastExecuted = make(map[string]civil.Date)
		}
		docs[i].LastExecuted[ruleID] = civil.DateOf(executed)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordExecution(ctx context.Context, report models.RetentionExecutionReport) (inserted bool, err error) {
	defer track("record_execution")(&err)

	query := `
		INSERT INTO retention_executions (rule_id, document_id, executed_on, action)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rule_id, document_id, executed_on) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query,
		report.RuleID, report.DocumentID, report.ExecutedOn.String(), report.Action,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record retention execution: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// decodeAttributes flattens a JSONB object to strings; non-string values use
// their JSON text.
func decodeAttributes(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("invalid attributes: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(fields))
	for k, v := range fields {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}
