package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/memory"
)

// backupTagFields are the shadow-record tags that must not be copied back
// onto a restored memory.
var backupTagFields = []string{"backupName", "backupTimestamp", "originalMemoryId"}

// CreateBackup copies matching memories into shadow backup records under the
// given name, generating a timestamped name when none is supplied. Returns
// false when nothing matched. Shadow records past the retention window are
// pruned after a successful backup.
func (s *Service) CreateBackup(ctx context.Context, name, userID string, types []string) (bool, error) {
	now := s.now()
	if name == "" {
		name = "backup_" + now.UTC().Format("20060102_150405")
	}
	op := s.hist.begin("backup", now)

	count, err := s.store.BackupMemories(ctx, name, now, userID, types)
	if err != nil {
		err = classifyResource("create backup "+name, err)
		s.hist.finish(op, StatusFailed, s.now(), func(o *RecoveryOperation) {
			o.ErrorMessage = err.Error()
		})
		return false, err
	}
	if count == 0 {
		s.hist.finish(op, StatusNotNeeded, s.now(), nil)
		log.Printf("recovery: backup %s matched no memories", name)
		return false, nil
	}

	retentionDays := s.config().BackupRetentionDays
	cutoff := now.AddDate(0, 0, -retentionDays)
	pruned, err := s.store.PruneBackups(ctx, cutoff)
	if err != nil {
		// The backup itself landed; retention cleanup can wait for the next run.
		log.Printf("recovery: backup retention cleanup failed: %v", err)
	} else if pruned > 0 {
		log.Printf("recovery: pruned %d backup record(s) older than %d days", pruned, retentionDays)
	}

	s.hist.finish(op, StatusSuccess, s.now(), nil)
	log.Printf("recovery: backup %s captured %d memories", name, count)
	return true, nil
}

// RestoreFromBackup recreates memories from a named backup's shadow records,
// optionally narrowed to specific memory IDs. With overwrite set, existing
// memories are replaced; without it, only missing memories are created.
// Restored memories are tagged with the backup name and restore time.
// Returns false when zero memories were restored; a restore that fails
// entirely on corrupt shadow records surfaces a *graph.CorruptionError.
func (s *Service) RestoreFromBackup(ctx context.Context, name string, memoryIDs []string, overwrite bool) (bool, error) {
	now := s.now()
	op := s.hist.begin("restore", now)

	records, err := s.store.BackupRecords(ctx, name, memoryIDs)
	if err != nil {
		err = classifyResource("restore from "+name, err)
		s.hist.finish(op, StatusFailed, s.now(), func(o *RecoveryOperation) {
			o.ErrorMessage = err.Error()
		})
		return false, err
	}
	if len(records) == 0 {
		s.hist.finish(op, StatusNotNeeded, s.now(), nil)
		log.Printf("recovery: backup %s has no matching records", name)
		return false, nil
	}

	var restored []string
	var skipped, failed int
	var corrupt *graph.CorruptionError
	for _, rec := range records {
		id, ok := memory.AsString(rec["originalMemoryId"])
		if !ok || id == "" {
			corrErr := &graph.CorruptionError{Reason: "backup " + name + " record has no original memory id"}
			log.Printf("recovery: %v, skipping", corrErr)
			if corrupt == nil {
				corrupt = corrErr
			}
			failed++
			continue
		}
		if !overwrite {
			exists, err := s.store.MemoryExists(ctx, id)
			if err != nil {
				err = classifyResource("restore from "+name, err)
				s.hist.finish(op, StatusFailed, s.now(), func(o *RecoveryOperation) {
					o.ErrorMessage = err.Error()
				})
				return false, err
			}
			if exists {
				skipped++
				continue
			}
		}

		props := restoreProps(rec, name, now)
		if err := s.store.RestoreMemory(ctx, id, props); err != nil {
			var connErr *graph.ConnectionError
			if errors.As(err, &connErr) {
				s.hist.finish(op, StatusFailed, s.now(), func(o *RecoveryOperation) {
					o.ErrorMessage = err.Error()
					o.AffectedMemories = append(o.AffectedMemories, restored...)
				})
				return len(restored) > 0, err
			}
			log.Printf("recovery: restore of memory %s failed: %v", id, err)
			failed++
			continue
		}
		restored = append(restored, id)
	}

	status := StatusSuccess
	switch {
	case len(restored) == 0:
		status = StatusNotNeeded
		if failed > 0 {
			status = StatusFailed
		}
	case failed > 0:
		status = StatusPartial
	}
	s.hist.finish(op, status, s.now(), func(o *RecoveryOperation) {
		o.AffectedMemories = append(o.AffectedMemories, restored...)
		if failed > 0 {
			o.ErrorMessage = fmt.Sprintf("%d record(s) failed to restore", failed)
		}
	})

	log.Printf("recovery: restore from %s: %d restored, %d skipped, %d failed",
		name, len(restored), skipped, failed)
	if len(restored) == 0 && corrupt != nil {
		return false, corrupt
	}
	return len(restored) > 0, nil
}

// classifyResource tags a store failure from backup/restore as a resource
// error. Retry exhaustion keeps its connection classification.
func classifyResource(op string, err error) error {
	var connErr *graph.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	return &graph.ResourceError{Op: op, Err: err}
}

// restoreProps builds the property set for a restored memory: the backup's
// copy of the original fields minus the shadow tags, plus restore provenance.
func restoreProps(rec graph.Record, backupName string, now time.Time) map[string]any {
	props := make(map[string]any, len(rec))
	for k, v := range rec {
		props[k] = v
	}
	for _, tag := range backupTagFields {
		delete(props, tag)
	}
	props["restoredFromBackup"] = backupName
	props["restoredAt"] = memory.Millis(now)
	return props
}
