package recovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/memory"
	"github.com/mnemos-io/mnemos/internal/store"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeRecoveryStore is an in-memory Store for recovery engine tests. Records
// are raw property maps, matching what the validation scan sees.
type fakeRecoveryStore struct {
	memories map[string]graph.Record
	order    []string
	backups  []graph.Record

	repairErr  map[string]error
	restoreErr map[string]error
	pageErr    error
	backupErr  error
	recordsErr error
}

func newFakeRecoveryStore() *fakeRecoveryStore {
	return &fakeRecoveryStore{
		memories:   make(map[string]graph.Record),
		repairErr:  make(map[string]error),
		restoreErr: make(map[string]error),
	}
}

func (f *fakeRecoveryStore) add(rec graph.Record) {
	id, _ := memory.AsString(rec["memoryId"])
	f.memories[id] = rec
	f.order = append(f.order, id)
}

func (f *fakeRecoveryStore) MemoryPage(ctx context.Context, filter store.PageFilter) ([]graph.Record, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	var matched []graph.Record
	for _, id := range f.order {
		rec, ok := f.memories[id]
		if !ok {
			continue
		}
		if len(filter.MemoryIDs) > 0 && !contains(filter.MemoryIDs, id) {
			continue
		}
		if filter.UserID != "" {
			if u, _ := memory.AsString(rec["userId"]); u != filter.UserID {
				continue
			}
		}
		matched = append(matched, rec)
	}
	if filter.Skip >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Skip:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (f *fakeRecoveryStore) RepairMemory(ctx context.Context, id string, fields map[string]any) error {
	if err := f.repairErr[id]; err != nil {
		return err
	}
	rec, ok := f.memories[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		rec[k] = v
	}
	return nil
}

func (f *fakeRecoveryStore) BackupMemories(ctx context.Context, name string, at time.Time, userID string, types []string) (int, error) {
	if f.backupErr != nil {
		return 0, f.backupErr
	}
	count := 0
	for _, id := range f.order {
		rec, ok := f.memories[id]
		if !ok {
			continue
		}
		if userID != "" {
			if u, _ := memory.AsString(rec["userId"]); u != userID {
				continue
			}
		}
		if len(types) > 0 {
			t, _ := memory.AsString(rec["memoryType"])
			if !contains(types, t) {
				continue
			}
		}
		shadow := graph.Record{}
		for k, v := range rec {
			shadow[k] = v
		}
		shadow["backupName"] = name
		shadow["backupTimestamp"] = memory.Millis(at)
		shadow["originalMemoryId"] = id
		f.backups = append(f.backups, shadow)
		count++
	}
	return count, nil
}

func (f *fakeRecoveryStore) PruneBackups(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := memory.Millis(olderThan)
	var kept []graph.Record
	pruned := 0
	for _, b := range f.backups {
		if ts, _ := b["backupTimestamp"].(int64); ts < cutoff {
			pruned++
			continue
		}
		kept = append(kept, b)
	}
	f.backups = kept
	return pruned, nil
}

func (f *fakeRecoveryStore) BackupRecords(ctx context.Context, name string, memoryIDs []string) ([]graph.Record, error) {
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	var out []graph.Record
	for _, b := range f.backups {
		if n, _ := memory.AsString(b["backupName"]); n != name {
			continue
		}
		id, _ := memory.AsString(b["originalMemoryId"])
		if len(memoryIDs) > 0 && !contains(memoryIDs, id) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRecoveryStore) RestoreMemory(ctx context.Context, id string, props map[string]any) error {
	if err := f.restoreErr[id]; err != nil {
		return err
	}
	rec := graph.Record{}
	for k, v := range props {
		rec[k] = v
	}
	rec["memoryId"] = id
	if _, exists := f.memories[id]; !exists {
		f.order = append(f.order, id)
	}
	f.memories[id] = rec
	return nil
}

func (f *fakeRecoveryStore) MemoryExists(ctx context.Context, id string) (bool, error) {
	_, ok := f.memories[id]
	return ok, nil
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

// validRecord builds a memory record that passes every validation rule.
func validRecord(id, userID string) graph.Record {
	return graph.Record{
		"memoryId":           id,
		"content":            "a perfectly ordinary memory",
		"memoryType":         "interaction",
		"userId":             userID,
		"agentName":          "mnemos",
		"consciousnessLevel": 0.5,
		"emotionalState":     "neutral",
		"importanceScore":    0.6,
		"createdAt":          memory.Millis(testNow.AddDate(0, 0, -3)),
		"embedding":          []any{0.1, 0.2, 0.3},
	}
}

func newTestService(f *fakeRecoveryStore) *Service {
	svc := New(f, DefaultConfig())
	svc.now = func() time.Time { return testNow }
	return svc
}

func issuesFor(issues []ValidationIssue, id string) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range issues {
		if issue.MemoryID == id {
			out = append(out, issue)
		}
	}
	return out
}

func TestValidateCleanRecordHasNoIssues(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.add(validRecord("a", "u1"))
	svc := newTestService(fake)

	issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ValidateMemoryData: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("clean record produced issues: %+v", issues)
	}
}

func TestValidateMissingFieldExactlyOnce(t *testing.T) {
	fake := newFakeRecoveryStore()
	rec := validRecord("a", "u1")
	delete(rec, "memoryType")
	fake.add(rec)
	svc := newTestService(fake)

	issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ValidateMemoryData: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1: %+v", len(issues), issues)
	}
	issue := issues[0]
	if issue.Type != IssueMissingField || issue.Field != "memoryType" {
		t.Errorf("got %s on %q, want missing_field on memoryType", issue.Type, issue.Field)
	}
	if issue.Severity != SeverityHigh {
		t.Errorf("severity = %s, want high", issue.Severity)
	}
	if issue.AutoFixable {
		t.Error("missing memoryType has no safe default and must not be auto-fixable")
	}
}

func TestValidateMissingScoresHaveDefaults(t *testing.T) {
	fake := newFakeRecoveryStore()
	rec := validRecord("a", "u1")
	delete(rec, "importanceScore")
	delete(rec, "consciousnessLevel")
	fake.add(rec)
	svc := newTestService(fake)

	issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ValidateMemoryData: %v", err)
	}
	fixes := map[string]float64{}
	for _, issue := range issues {
		if !issue.AutoFixable {
			t.Errorf("issue for %s should be auto-fixable", issue.Field)
			continue
		}
		fixes[issue.Field], _ = issue.SuggestedFix.(float64)
	}
	if fixes["importanceScore"] != 0.7 {
		t.Errorf("importanceScore default = %v, want 0.7", fixes["importanceScore"])
	}
	if fixes["consciousnessLevel"] != 0.5 {
		t.Errorf("consciousnessLevel default = %v, want 0.5", fixes["consciousnessLevel"])
	}
}

func TestValidateValueRules(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(graph.Record)
		wantType IssueType
		wantSev  Severity
		wantFix  bool
		check    func(t *testing.T, issue ValidationIssue)
	}{
		{
			name:     "unknown memory type",
			mutate:   func(r graph.Record) { r["memoryType"] = "daydream" },
			wantType: IssueInvalidValue,
			wantSev:  SeverityMedium,
			wantFix:  true,
			check: func(t *testing.T, issue ValidationIssue) {
				if issue.SuggestedFix != "interaction" {
					t.Errorf("fix = %v, want interaction", issue.SuggestedFix)
				}
			},
		},
		{
			name:     "importance out of range clamps",
			mutate:   func(r graph.Record) { r["importanceScore"] = 1.7 },
			wantType: IssueInvalidValue,
			wantSev:  SeverityMedium,
			wantFix:  true,
			check: func(t *testing.T, issue ValidationIssue) {
				if issue.SuggestedFix != 1.0 {
					t.Errorf("fix = %v, want clamp to 1.0", issue.SuggestedFix)
				}
			},
		},
		{
			name:     "non-numeric consciousness defaults",
			mutate:   func(r graph.Record) { r["consciousnessLevel"] = "very" },
			wantType: IssueInvalidValue,
			wantSev:  SeverityMedium,
			wantFix:  true,
			check: func(t *testing.T, issue ValidationIssue) {
				if issue.SuggestedFix != 0.5 {
					t.Errorf("fix = %v, want default 0.5", issue.SuggestedFix)
				}
			},
		},
		{
			name:     "future createdAt",
			mutate:   func(r graph.Record) { r["createdAt"] = memory.Millis(testNow.Add(3 * time.Hour)) },
			wantType: IssueTimestampAnomaly,
			wantSev:  SeverityLow,
			wantFix:  true,
			check: func(t *testing.T, issue ValidationIssue) {
				if issue.SuggestedFix != memory.Millis(testNow) {
					t.Errorf("fix = %v, want reset to now", issue.SuggestedFix)
				}
			},
		},
		{
			name:     "unparsable createdAt",
			mutate:   func(r graph.Record) { r["createdAt"] = "last tuesday" },
			wantType: IssueCorruptedData,
			wantSev:  SeverityHigh,
			wantFix:  true,
		},
		{
			name:     "empty embedding",
			mutate:   func(r graph.Record) { r["embedding"] = []any{} },
			wantType: IssueInvalidEmbedding,
			wantSev:  SeverityMedium,
			wantFix:  false,
		},
		{
			name:     "whitespace content",
			mutate:   func(r graph.Record) { r["content"] = "   " },
			wantType: IssueCorruptedData,
			wantSev:  SeverityCritical,
			wantFix:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeRecoveryStore()
			rec := validRecord("a", "u1")
			tc.mutate(rec)
			fake.add(rec)
			svc := newTestService(fake)

			issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
			if err != nil {
				t.Fatalf("ValidateMemoryData: %v", err)
			}
			if len(issues) != 1 {
				t.Fatalf("got %d issues, want 1: %+v", len(issues), issues)
			}
			issue := issues[0]
			if issue.Type != tc.wantType {
				t.Errorf("type = %s, want %s", issue.Type, tc.wantType)
			}
			if issue.Severity != tc.wantSev {
				t.Errorf("severity = %s, want %s", issue.Severity, tc.wantSev)
			}
			if issue.AutoFixable != tc.wantFix {
				t.Errorf("autoFixable = %v, want %v", issue.AutoFixable, tc.wantFix)
			}
			if tc.check != nil {
				tc.check(t, issue)
			}
		})
	}
}

func TestValidatePagesThroughAllMemories(t *testing.T) {
	fake := newFakeRecoveryStore()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		rec := validRecord(id, "u1")
		delete(rec, "agentName")
		fake.add(rec)
	}
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	svc := New(fake, cfg)
	svc.now = func() time.Time { return testNow }

	issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ValidateMemoryData: %v", err)
	}
	if len(issues) != 5 {
		t.Errorf("got %d issues across pages, want 5", len(issues))
	}
}

func TestValidateScanFailureIsValidationError(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.pageErr = context.DeadlineExceeded
	svc := newTestService(fake)

	_, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err == nil {
		t.Fatal("expected scan failure to propagate")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v, want a validation error", err)
	}
}

func TestRepairFixesIssuesInOneWrite(t *testing.T) {
	fake := newFakeRecoveryStore()
	rec := validRecord("a", "u1")
	rec["memoryType"] = "daydream"
	rec["importanceScore"] = 2.5
	fake.add(rec)
	svc := newTestService(fake)

	issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ValidateMemoryData: %v", err)
	}
	if len(issuesFor(issues, "a")) != 2 {
		t.Fatalf("expected 2 issues before repair, got %+v", issues)
	}

	result, err := svc.RepairMemoryIssues(context.Background(), issues, true)
	if err != nil {
		t.Fatalf("RepairMemoryIssues: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("status = %s, want success", result.Status)
	}
	if len(result.FixedIssues) != 2 {
		t.Errorf("fixed %d issues, want 2", len(result.FixedIssues))
	}

	got := fake.memories["a"]
	if got["memoryType"] != "interaction" {
		t.Errorf("memoryType = %v, want interaction", got["memoryType"])
	}
	if got["importanceScore"] != 1.0 {
		t.Errorf("importanceScore = %v, want clamped 1.0", got["importanceScore"])
	}
	if got["lastRepair"] != memory.Millis(testNow) {
		t.Errorf("lastRepair = %v, want repair stamp", got["lastRepair"])
	}

	// A clean store needs no second repair.
	issues, err = svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	result, err = svc.RepairMemoryIssues(context.Background(), issues, true)
	if err != nil {
		t.Fatalf("second repair: %v", err)
	}
	if result.Status != StatusNotNeeded {
		t.Errorf("second repair status = %s, want not_needed", result.Status)
	}
}

func TestRepairPartialWhenOneMemoryFails(t *testing.T) {
	fake := newFakeRecoveryStore()
	for _, id := range []string{"a", "b"} {
		rec := validRecord(id, "u1")
		rec["memoryType"] = "daydream"
		fake.add(rec)
	}
	fake.repairErr["b"] = context.DeadlineExceeded
	svc := newTestService(fake)

	issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ValidateMemoryData: %v", err)
	}
	result, err := svc.RepairMemoryIssues(context.Background(), issues, true)
	if err != nil {
		t.Fatalf("RepairMemoryIssues: %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("status = %s, want partial", result.Status)
	}
	if len(result.FixedIssues) != 1 {
		t.Errorf("fixed %d issues, want 1", len(result.FixedIssues))
	}
}

func TestRepairRespectsAutoFixCap(t *testing.T) {
	fake := newFakeRecoveryStore()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		rec := validRecord(id, "u1")
		rec["memoryType"] = "daydream"
		fake.add(rec)
	}
	cfg := DefaultConfig()
	cfg.AutoFixMaxIssues = 2
	svc := New(fake, cfg)
	svc.now = func() time.Time { return testNow }

	issues, err := svc.ValidateMemoryData(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ValidateMemoryData: %v", err)
	}
	result, err := svc.RepairMemoryIssues(context.Background(), issues, true)
	if err != nil {
		t.Fatalf("RepairMemoryIssues: %v", err)
	}
	if len(result.FixedIssues) != 2 {
		t.Errorf("fixed %d issues, want cap of 2", len(result.FixedIssues))
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.add(validRecord("a", "u1"))
	fake.add(validRecord("b", "u1"))
	svc := newTestService(fake)
	ctx := context.Background()

	ok, err := svc.CreateBackup(ctx, "pre-migration", "", nil)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if !ok {
		t.Fatal("backup of two memories reported nothing captured")
	}

	// Lose one memory, then restore without overwrite.
	delete(fake.memories, "a")
	ok, err = svc.RestoreFromBackup(ctx, "pre-migration", nil, false)
	if err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	if !ok {
		t.Fatal("restore reported nothing restored")
	}

	got, exists := fake.memories["a"]
	if !exists {
		t.Fatal("memory a was not recreated")
	}
	if got["content"] != "a perfectly ordinary memory" {
		t.Errorf("content = %v, want original content", got["content"])
	}
	if got["restoredFromBackup"] != "pre-migration" {
		t.Errorf("restoredFromBackup = %v, want backup name", got["restoredFromBackup"])
	}
	for _, tag := range backupTagFields {
		if _, present := got[tag]; present {
			t.Errorf("shadow tag %s leaked onto restored memory", tag)
		}
	}

	// b still existed, so without overwrite it must be untouched.
	if _, present := fake.memories["b"]["restoredAt"]; present {
		t.Error("existing memory b was overwritten without overwrite flag")
	}
}

func TestBackupEmptyStoreReturnsFalse(t *testing.T) {
	fake := newFakeRecoveryStore()
	svc := newTestService(fake)

	ok, err := svc.CreateBackup(context.Background(), "empty", "", nil)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if ok {
		t.Error("backup of empty store must return false")
	}
}

func TestBackupPrunesExpiredShadowRecords(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.add(validRecord("a", "u1"))
	fake.backups = append(fake.backups, graph.Record{
		"backupName":       "ancient",
		"backupTimestamp":  memory.Millis(testNow.AddDate(0, 0, -45)),
		"originalMemoryId": "old",
	})
	svc := newTestService(fake)

	if _, err := svc.CreateBackup(context.Background(), "fresh", "", nil); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	for _, b := range fake.backups {
		if b["backupName"] == "ancient" {
			t.Error("45-day-old shadow record survived the retention prune")
		}
	}
}

func TestRestoreOverwriteReplacesExisting(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.add(validRecord("a", "u1"))
	svc := newTestService(fake)
	ctx := context.Background()

	if _, err := svc.CreateBackup(ctx, "snap", "", nil); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	fake.memories["a"]["content"] = "mangled by a bad migration"

	ok, err := svc.RestoreFromBackup(ctx, "snap", []string{"a"}, true)
	if err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	if !ok {
		t.Fatal("overwrite restore reported nothing restored")
	}
	if fake.memories["a"]["content"] != "a perfectly ordinary memory" {
		t.Errorf("content = %v, want backup copy", fake.memories["a"]["content"])
	}
}

func TestRestoreUnknownBackupReturnsFalse(t *testing.T) {
	fake := newFakeRecoveryStore()
	svc := newTestService(fake)

	ok, err := svc.RestoreFromBackup(context.Background(), "no-such-backup", nil, false)
	if err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	if ok {
		t.Error("restore from unknown backup must return false")
	}
}

func TestBackupStoreFailureIsResourceError(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.add(validRecord("m1", "u1"))
	fake.backupErr = errors.New("disk full")
	svc := newTestService(fake)

	ok, err := svc.CreateBackup(context.Background(), "full", "", nil)
	if ok {
		t.Error("failed backup must return false")
	}
	var resErr *graph.ResourceError
	if !errors.As(err, &resErr) {
		t.Fatalf("err = %v, want *graph.ResourceError", err)
	}

	ops := svc.Operations()
	if len(ops) == 0 || ops[0].Status != StatusFailed {
		t.Errorf("history must record the failed backup: %+v", ops)
	}
}

func TestBackupConnectionFailureKeepsClassification(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.add(validRecord("m1", "u1"))
	fake.backupErr = &graph.ConnectionError{Op: "write query", Attempts: 5, Err: errors.New("connection refused")}
	svc := newTestService(fake)

	_, err := svc.CreateBackup(context.Background(), "full", "", nil)
	var connErr *graph.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want *graph.ConnectionError", err)
	}
	var resErr *graph.ResourceError
	if errors.As(err, &resErr) {
		t.Error("retry exhaustion must not be reclassified as a resource failure")
	}
}

func TestRestoreFetchFailureIsResourceError(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.recordsErr = errors.New("out of memory")
	svc := newTestService(fake)

	_, err := svc.RestoreFromBackup(context.Background(), "full", nil, true)
	var resErr *graph.ResourceError
	if !errors.As(err, &resErr) {
		t.Fatalf("err = %v, want *graph.ResourceError", err)
	}
}

func TestRestoreCorruptRecordIsCorruptionError(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.backups = append(fake.backups, graph.Record{
		"backupName":      "full",
		"backupTimestamp": memory.Millis(testNow),
		"content":         "shadow record missing its original id",
	})
	svc := newTestService(fake)

	ok, err := svc.RestoreFromBackup(context.Background(), "full", nil, true)
	if ok {
		t.Error("restore of only corrupt records must return false")
	}
	var corrErr *graph.CorruptionError
	if !errors.As(err, &corrErr) {
		t.Fatalf("err = %v, want *graph.CorruptionError", err)
	}

	ops := svc.Operations()
	if len(ops) == 0 || ops[0].Status != StatusFailed {
		t.Errorf("history must record the failed restore: %+v", ops)
	}
}

func TestConfigOverridesApplyAtRuntime(t *testing.T) {
	svc := newTestService(newFakeRecoveryStore())

	err := svc.UpdateConfig(map[string]any{
		"backup_retention_days": 7,
		"auto_fix_max_issues":   5,
	})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	status := svc.Status()
	if status.BackupRetentionDays != 7 || status.AutoFixMaxIssues != 5 {
		t.Errorf("status = %+v, want retention 7 and autofix 5", status)
	}

	bad := []map[string]any{
		{"no_such_key": 1},
		{"backup_retention_days": 0},
		{"validation_batch_size": "many"},
	}
	for _, overrides := range bad {
		if err := svc.UpdateConfig(overrides); err == nil {
			t.Errorf("UpdateConfig accepted %v", overrides)
		}
	}
	if svc.Status().BackupRetentionDays != 7 {
		t.Error("rejected override must leave the config unchanged")
	}
}

func TestOperationsHistoryRecordsRuns(t *testing.T) {
	fake := newFakeRecoveryStore()
	fake.add(validRecord("a", "u1"))
	svc := newTestService(fake)
	ctx := context.Background()

	if _, err := svc.CreateBackup(ctx, "audit", "", nil); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if _, err := svc.RepairMemoryIssues(ctx, nil, true); err != nil {
		t.Fatalf("RepairMemoryIssues: %v", err)
	}

	ops := svc.Operations()
	if len(ops) != 2 {
		t.Fatalf("got %d operations, want 2", len(ops))
	}
	// Most recent first.
	if ops[0].Type != "repair" || ops[0].Status != StatusNotNeeded {
		t.Errorf("ops[0] = %s/%s, want repair/not_needed", ops[0].Type, ops[0].Status)
	}
	if ops[1].Type != "backup" || ops[1].Status != StatusSuccess {
		t.Errorf("ops[1] = %s/%s, want backup/success", ops[1].Type, ops[1].Status)
	}
	for _, op := range ops {
		if op.ID == "" {
			t.Error("operation is missing an id")
		}
		if op.EndTime.IsZero() {
			t.Error("finished operation is missing an end time")
		}
	}

	status := svc.Status()
	if status.HistorySize != 2 {
		t.Errorf("historySize = %d, want 2", status.HistorySize)
	}
	if status.ActiveOperations != 0 {
		t.Errorf("activeOperations = %d, want 0", status.ActiveOperations)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	hist := newHistory(3)
	for i := 0; i < 5; i++ {
		op := hist.begin("backup", testNow)
		hist.finish(op, StatusSuccess, testNow, nil)
	}
	if hist.size() != 3 {
		t.Errorf("history size = %d, want bound of 3", hist.size())
	}
}
