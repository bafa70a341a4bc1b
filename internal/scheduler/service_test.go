package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"compass/internal/config"
	"compass/internal/constants"
	"compass/internal/dedup"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/internal/ruleset"
	"compass/pkg/models"
	"compass/pkg/retry"
)

type fakeRepo struct {
	mu       sync.Mutex
	rules    []rules.Rule
	tasks    []Task
	docs     []Document
	recorded []models.RetentionExecutionReport
	err      error
}

func (f *fakeRepo) LoadRules(context.Context) ([]rules.Rule, error) { return f.rules, nil }
func (f *fakeRepo) OpenTasks(context.Context) ([]Task, error)       { return f.tasks, f.err }
func (f *fakeRepo) Documents(context.Context) ([]Document, error)   { return f.docs, f.err }

func (f *fakeRepo) RecordExecution(_ context.Context, r models.RetentionExecutionReport) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, existing := range f.recorded {
		if existing == r {
			return false, nil
		}
	}
	f.recorded = append(f.recorded, r)
	return true, nil
}

type published struct {
	topic string
	msg   models.MessageEnvelope
}

type recordingProducer struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, msg: msg})
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) byTopic(topic string) []models.MessageEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.MessageEnvelope
	for _, s := range p.sent {
		if s.topic == topic {
			out = append(out, s.msg)
		}
	}
	return out
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

var testTopics = config.TopicsConfig{Reminders: "reminders", Retention: "retention"}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func reminderRule(id string, scope rules.Scope, matcher string, tokens ...string) rules.Rule {
	return rules.Rule{
		ID: id, Category: rules.CategoryReminder, Scope: scope, TargetMatcher: matcher, IsActive: true,
		Reminder: &rules.ReminderPayload{Tokens: tokens},
	}
}

func retentionRule(id string, scope rules.Scope, matcher string, period int, unit rules.Unit) rules.Rule {
	return rules.Rule{
		ID: id, Category: rules.CategoryRetention, Scope: scope, TargetMatcher: matcher, IsActive: true,
		Retention: &rules.RetentionPayload{Period: period, Unit: unit, Action: rules.ActionArchive},
	}
}

func task(id, head, sub, due string) Task {
	return Task{Target: rules.Target{ID: id, CategoryName: head, SubcategoryName: sub}, DueDate: date(due)}
}

type fixture struct {
	repo     *fakeRepo
	producer *recordingProducer
	store    *memoryStore
	svc      *Service
}

func newFixture(t *testing.T, repo *fakeRepo, today string) *fixture {
	t.Helper()

	rs := ruleset.NewStore(repo, config.ReloadConfig{}, nil, logger.NopLogger(), rules.CategoryReminder, rules.CategoryRetention)
	require.NoError(t, rs.ReloadRules(context.Background(), true))

	store := &memoryStore{keys: make(map[string]bool)}
	guard := dedup.NewGuard(store, config.DedupConfig{Enabled: true, KeyPrefix: "p:", TTLSeconds: 60, OnRedisError: constants.FallbackAllow},
		constants.ServiceScheduler, logger.NopLogger())

	producer := &recordingProducer{}
	now := date(today).In(time.UTC).Add(9 * time.Hour)
	svc, err := NewService(repo, rs, producer,
		config.SchedulerConfig{HorizonDays: 1, Workers: 4},
		testTopics, logger.NopLogger(),
		WithClock(func() time.Time { return now }),
		WithGuard(guard),
	)
	require.NoError(t, err)

	return &fixture{repo: repo, producer: producer, store: store, svc: svc}
}

func TestSweep_RemindersInsideWindow(t *testing.T) {
	repo := &fakeRepo{
		rules: []rules.Rule{
			reminderRule("1", rules.ScopeGlobal, rules.Wildcard, "T-30"),
			reminderRule("2", rules.ScopeCategory, "GST", "T-7", "T-6", "T-1", "D+1"),
		},
		tasks: []Task{
			task("task-1", "GST", "GSTR-1", "2025-06-08"),
			task("task-2", "TDS", "24Q", "2025-07-01"),
		},
	}
	f := newFixture(t, repo, "2025-06-01")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	msgs := f.producer.byTopic("reminders")
	require.Len(t, msgs, 3)
	assert.Equal(t, 3, report.Published)
	assert.Equal(t, 2, report.Targets)
	assert.Empty(t, report.Failures)
	assert.Equal(t, date("2025-06-02"), report.Horizon)

	var got []string
	for _, m := range msgs {
		var ev models.ScheduledEvent
		require.NoError(t, models.DecodePayload(m, &ev))
		assert.Equal(t, m.ID, ev.ID)
		assert.Equal(t, constants.EventReminderScheduled, m.Metadata.EventType)
		assert.Equal(t, report.ID, m.Metadata.SweepID)
		got = append(got, ev.TargetID+"@"+ev.FiringDate.String()+"/"+ev.Token)
	}
	assert.ElementsMatch(t, []string{
		"task-1@2025-06-01/T-7",
		"task-1@2025-06-02/T-6",
		"task-2@2025-06-01/T-30",
	}, got)
}

func TestSweep_RerunPublishesOnce(t *testing.T) {
	repo := &fakeRepo{
		rules: []rules.Rule{reminderRule("1", rules.ScopeGlobal, rules.Wildcard, "T-7")},
		tasks: []Task{task("task-1", "GST", "GSTR-1", "2025-06-08")},
	}
	f := newFixture(t, repo, "2025-06-01")

	first, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	second, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.Published)
	assert.Equal(t, 0, second.Published)
	assert.Equal(t, 1, second.Duplicates)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, f.producer.byTopic("reminders"), 1)
}

func TestSweep_InvalidTokenIsolatedToTarget(t *testing.T) {
	repo := &fakeRepo{
		rules: []rules.Rule{
			reminderRule("1", rules.ScopeGlobal, rules.Wildcard, "T-7"),
			reminderRule("2", rules.ScopeSubcategory, "GSTR-3B", "T-7", "X-1"),
		},
		tasks: []Task{
			task("task-1", "GST", "GSTR-1", "2025-06-08"),
			task("task-2", "GST", "GSTR-3B", "2025-06-08"),
		},
	}
	f := newFixture(t, repo, "2025-06-01")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Published)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "task-2", report.Failures[0].TargetID)
	assert.Equal(t, "2", report.Failures[0].RuleID)
	assert.Equal(t, "invalid_token", report.Failures[0].Reason)
}

func TestSweep_UndecodableTargetsBecomeFailures(t *testing.T) {
	bad := task("task-bad", "GST", "GSTR-1", "2025-06-08")
	bad.Err = errors.New("invalid attributes: json: cannot unmarshal array")
	repo := &fakeRepo{
		rules: []rules.Rule{
			reminderRule("1", rules.ScopeGlobal, rules.Wildcard, "T-7"),
			retentionRule("10", rules.ScopeGlobal, rules.Wildcard, 1, rules.UnitYears),
		},
		tasks: []Task{bad, task("task-1", "GST", "GSTR-1", "2025-06-08")},
		docs: []Document{{
			Target:     rules.Target{ID: "doc-bad", CategoryName: "GST"},
			UploadedOn: date("2024-06-01"),
			Err:        errors.New("invalid attributes"),
		}},
	}
	f := newFixture(t, repo, "2025-06-01")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Targets)
	assert.Equal(t, 1, report.Published)
	require.Len(t, report.Failures, 2)
	for _, failure := range report.Failures {
		assert.Equal(t, "invalid_target", failure.Reason)
		assert.Contains(t, []string{"task-bad", "doc-bad"}, failure.TargetID)
	}
}

func TestSweep_Retention(t *testing.T) {
	doc := func(id, head, uploaded string, last map[string]civil.Date) Document {
		return Document{Target: rules.Target{ID: id, CategoryName: head}, UploadedOn: date(uploaded), LastExecuted: last}
	}
	repo := &fakeRepo{
		rules: []rules.Rule{
			retentionRule("10", rules.ScopeGlobal, rules.Wildcard, 1, rules.UnitYears),
			retentionRule("11", rules.ScopeCategory, "PAYROLL", 0, rules.UnitMonths),
		},
		docs: []Document{
			doc("doc-due", "GST", "2024-06-02", nil),
			doc("doc-overdue", "GST", "2023-01-15", nil),
			doc("doc-later", "GST", "2024-09-01", nil),
			doc("doc-reanchored", "GST", "2020-01-01", map[string]civil.Date{"10": date("2024-12-31")}),
			doc("doc-bad-rule", "PAYROLL", "2024-01-01", nil),
		},
	}
	f := newFixture(t, repo, "2025-06-01")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	msgs := f.producer.byTopic("retention")
	got := make(map[string]models.ScheduledEvent)
	for _, m := range msgs {
		var ev models.ScheduledEvent
		require.NoError(t, models.DecodePayload(m, &ev))
		got[ev.TargetID] = ev
	}

	require.Len(t, got, 2)
	assert.Equal(t, date("2025-06-02"), got["doc-due"].FiringDate)
	assert.Equal(t, "archive", got["doc-due"].Action)
	assert.Equal(t, date("2024-01-15"), got["doc-overdue"].FiringDate)
	assert.NotContains(t, got, "doc-later")
	assert.NotContains(t, got, "doc-reanchored")

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "doc-bad-rule", report.Failures[0].TargetID)
	assert.Equal(t, "invalid_period", report.Failures[0].Reason)
}

func TestSweep_ReportsTies(t *testing.T) {
	repo := &fakeRepo{
		rules: []rules.Rule{
			reminderRule("4", rules.ScopeCategory, "GST", "T-7"),
			reminderRule("3", rules.ScopeCategory, "GST", "T-6"),
		},
		tasks: []Task{task("task-1", "GST", "GSTR-1", "2025-06-08")},
	}
	f := newFixture(t, repo, "2025-06-01")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Ties, 1)
	assert.Equal(t, "3", report.Ties[0].Chosen)
	assert.Equal(t, []string{"4"}, report.Ties[0].Tied)

	msgs := f.producer.byTopic("reminders")
	require.Len(t, msgs, 1)
	var ev models.ScheduledEvent
	require.NoError(t, models.DecodePayload(msgs[0], &ev))
	assert.Equal(t, "3", ev.SourceRuleID)
	assert.Equal(t, date("2025-06-02"), ev.FiringDate)
}

func TestSweep_PublishFailureReleasesClaim(t *testing.T) {
	repo := &fakeRepo{
		rules: []rules.Rule{reminderRule("1", rules.ScopeGlobal, rules.Wildcard, "T-7")},
		tasks: []Task{task("task-1", "GST", "GSTR-1", "2025-06-08")},
	}
	f := newFixture(t, repo, "2025-06-01")
	f.producer.err = errors.New("broker down")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "publish", report.Failures[0].Reason)
	assert.Empty(t, f.store.keys)

	f.producer.err = nil
	report, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Published)
}

func TestSweep_Errors(t *testing.T) {
	t.Run("rules not loaded", func(t *testing.T) {
		rs := ruleset.NewStore(&fakeRepo{}, config.ReloadConfig{}, nil, logger.NopLogger())
		svc, err := NewService(&fakeRepo{}, rs, &recordingProducer{}, config.SchedulerConfig{}, testTopics, logger.NopLogger())
		require.NoError(t, err)

		_, err = svc.Sweep(context.Background())
		assert.ErrorIs(t, err, ruleset.ErrNotLoaded)
	})

	t.Run("repository failure", func(t *testing.T) {
		f := newFixture(t, &fakeRepo{}, "2025-06-01")
		f.repo.err = errors.New("db down")
		_, err := f.svc.Sweep(context.Background())
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t, &fakeRepo{
			rules: []rules.Rule{reminderRule("1", rules.ScopeGlobal, rules.Wildcard, "T-7")},
			tasks: []Task{task("task-1", "GST", "GSTR-1", "2025-06-08")},
		}, "2025-06-01")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := f.svc.Sweep(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, report.Published)
	})

	t.Run("bad timezone", func(t *testing.T) {
		_, err := NewService(&fakeRepo{}, nil, nil, config.SchedulerConfig{Timezone: "Mars/Olympus"}, testTopics, logger.NopLogger())
		assert.Error(t, err)
	})
}

func TestToday_UsesTimezone(t *testing.T) {
	rs := ruleset.NewStore(&fakeRepo{}, config.ReloadConfig{}, nil, logger.NopLogger())
	now := time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC)
	svc, err := NewService(&fakeRepo{}, rs, nil, config.SchedulerConfig{Timezone: "Asia/Kolkata"}, testTopics, logger.NopLogger(),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	assert.Equal(t, date("2025-07-01"), svc.Today())
}

func TestHandleExecutionReport(t *testing.T) {
	envelope := func(t *testing.T, r models.RetentionExecutionReport) models.MessageEnvelope {
		env, err := models.NewEnvelope("archiver", constants.EventRetentionExecuted, r)
		require.NoError(t, err)
		return env
	}
	valid := models.RetentionExecutionReport{RuleID: "10", DocumentID: "doc-1", ExecutedOn: date("2025-07-20"), Action: "archive"}

	t.Run("records once", func(t *testing.T) {
		f := newFixture(t, &fakeRepo{}, "2025-06-01")
		require.NoError(t, f.svc.HandleExecutionReport(context.Background(), envelope(t, valid)))
		require.NoError(t, f.svc.HandleExecutionReport(context.Background(), envelope(t, valid)))
		assert.Equal(t, []models.RetentionExecutionReport{valid}, f.repo.recorded)
	})

	t.Run("logs the next execution of an active rule", func(t *testing.T) {
		repo := &fakeRepo{rules: []rules.Rule{retentionRule("10", rules.ScopeGlobal, rules.Wildcard, 1, rules.UnitYears)}}
		f := newFixture(t, repo, "2025-06-01")
		core, logs := observer.New(zap.InfoLevel)
		f.svc.logger = &logger.SugaredLogger{SugaredLogger: zap.New(core).Sugar()}

		require.NoError(t, f.svc.HandleExecutionReport(context.Background(), envelope(t, valid)))

		entries := logs.FilterMessage("Retention execution recorded").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "2026-07-20", entries[0].ContextMap()["next_execution"])
	})

	t.Run("unknown rule has no next execution", func(t *testing.T) {
		f := newFixture(t, &fakeRepo{}, "2025-06-01")
		core, logs := observer.New(zap.InfoLevel)
		f.svc.logger = &logger.SugaredLogger{SugaredLogger: zap.New(core).Sugar()}

		require.NoError(t, f.svc.HandleExecutionReport(context.Background(), envelope(t, valid)))

		entries := logs.FilterMessage("Retention execution recorded").All()
		require.Len(t, entries, 1)
		assert.NotContains(t, entries[0].ContextMap(), "next_execution")
	})

	t.Run("invalid report is fatal", func(t *testing.T) {
		f := newFixture(t, &fakeRepo{}, "2025-06-01")
		bad := valid
		bad.Action = "shred"

		err := f.svc.HandleExecutionReport(context.Background(), envelope(t, bad))
		var fatal retry.FatalError
		require.ErrorAs(t, err, &fatal)
		assert.True(t, fatal.IsFatal())
		assert.Empty(t, f.repo.recorded)
	})

	t.Run("repository failure is retryable", func(t *testing.T) {
		f := newFixture(t, &fakeRepo{}, "2025-06-01")
		f.repo.err = errors.New("db down")

		err := f.svc.HandleExecutionReport(context.Background(), envelope(t, valid))
		var retryable retry.RetryableError
		require.ErrorAs(t, err, &retryable)
	})
}

func TestDocumentAnchor(t *testing.T) {
	doc := Document{UploadedOn: date("2024-01-10"), LastExecuted: map[string]civil.Date{"7": date("2024-07-20")}}
	assert.Equal(t, date("2024-07-20"), doc.Anchor("7"))
	assert.Equal(t, date("2024-01-10"), doc.Anchor("8"))
}
