// Package syncengine implements the batched upsert and change-feed
// operations of spec.md §4.5, translating whitelisted entity payloads
// into existence-check-then-branch INSERT/UPDATE statements against a
// dbdriver.DBConnection.
package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// BatchSize is the number of payload items committed per transaction.
const BatchSize = 250

// maxChangeRows caps GetChanges per spec.md §4.5.2.
const maxChangeRows = 1000

// maxStoredErrors caps how many per-item error messages SyncResult
// retains; the HTTP layer further summarizes to the first three plus
// a "(and N more)" suffix.
const maxStoredErrors = 10

// SyncResult accumulates outcome counters across every batch of a Sync call.
type SyncResult struct {
	TotalProcessed int      `json:"totalProcessed"`
	SuccessCount   int      `json:"successCount"`
	FailCount      int      `json:"failCount"`
	Errors         []string `json:"errors,omitempty"`
}

func (r *SyncResult) addError(msg string) {
	if len(r.Errors) < maxStoredErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// Summary renders the first three errors verbatim plus a count of the
// remainder, as required for the HTTP mutation response shape (spec.md §6.1).
func (r *SyncResult) Summary() string {
	if len(r.Errors) == 0 {
		return ""
	}
	shown := r.Errors
	more := 0
	if len(shown) > 3 {
		more = len(shown) - 3
		shown = shown[:3]
	}
	msg := strings.Join(shown, "; ")
	if more > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, more)
	}
	return msg
}

// Sync parses payload[spec.ArrayKey] as an array of objects and
// upserts each in batches of BatchSize, committing a batch only when
// every item in it succeeded (spec.md §4.5.1).
func Sync(ctx context.Context, conn dbdriver.DBConnection, spec EntitySpec, payload map[string]any) (*SyncResult, error) {
	rawItems, ok := payload[spec.ArrayKey]
	if !ok {
		return nil, gwerrors.MissingParameter("payload must contain a %q array", spec.ArrayKey)
	}
	items, ok := rawItems.([]any)
	if !ok {
		return nil, gwerrors.MissingParameter("%q must be an array", spec.ArrayKey)
	}

	result := &SyncResult{}
	for start := 0; start < len(items); start += BatchSize {
		end := start + BatchSize
		if end > len(items) {
			end = len(items)
		}
		if err := syncBatch(ctx, conn, spec, items[start:end], result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func syncBatch(ctx context.Context, conn dbdriver.DBConnection, spec EntitySpec, batch []any, result *SyncResult) error {
	if err := conn.StartTransaction(ctx); err != nil {
		return gwerrors.CommandError(err, "starting sync batch transaction")
	}

	batchFail := 0
	for _, raw := range batch {
		result.TotalProcessed++
		if err := syncItem(ctx, conn, spec, raw); err != nil {
			batchFail++
			result.FailCount++
			result.addError(err.Error())
			continue
		}
		result.SuccessCount++
	}

	if batchFail == 0 {
		if err := conn.Commit(); err != nil {
			return gwerrors.CommandError(err, "committing sync batch")
		}
	} else {
		if err := conn.Rollback(); err != nil {
			slog.Warn("rollback of failed sync batch also failed", "entity", spec.Name, "error", err)
		}
	}
	return nil
}

func syncItem(ctx context.Context, conn dbdriver.DBConnection, spec EntitySpec, raw any) error {
	obj, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("item is not an object")
	}
	id := coerceInt("id", obj["id"], -1)
	if id < 0 {
		return fmt.Errorf("item missing a valid integer id")
	}

	values := make(dbdriver.Params, len(spec.Fields)+1)
	values["id"] = id
	for _, f := range spec.Fields {
		values[f.Name] = coerceField(f, obj[f.Name])
	}

	exists, err := entityExists(ctx, conn, spec, id)
	if err != nil {
		return fmt.Errorf("id %d: checking existence: %w", id, err)
	}

	if exists {
		if err := updateEntity(ctx, conn, spec, values); err != nil {
			return fmt.Errorf("id %d: update failed: %w", id, err)
		}
		return nil
	}
	if err := insertEntity(ctx, conn, spec, values); err != nil {
		return fmt.Errorf("id %d: insert failed: %w", id, err)
	}
	return nil
}

func entityExists(ctx context.Context, conn dbdriver.DBConnection, spec EntitySpec, id int) (bool, error) {
	table, err := dbdriver.QuoteIdentifier(conn.Engine(), spec.Table)
	if err != nil {
		return false, err
	}
	idCol, err := dbdriver.QuoteIdentifier(conn.Engine(), "id")
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = :id", idCol, table, idCol)
	v, err := conn.ExecuteScalar(ctx, query, dbdriver.Params{"id": id})
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func insertEntity(ctx context.Context, conn dbdriver.DBConnection, spec EntitySpec, values dbdriver.Params) error {
	table, err := dbdriver.QuoteIdentifier(conn.Engine(), spec.Table)
	if err != nil {
		return err
	}
	idCol, err := dbdriver.QuoteIdentifier(conn.Engine(), "id")
	if err != nil {
		return err
	}
	lastSyncCol, err := dbdriver.QuoteIdentifier(conn.Engine(), "LastSync")
	if err != nil {
		return err
	}

	cols := []string{idCol}
	binds := []string{":id"}
	for _, f := range spec.Fields {
		quoted, err := dbdriver.QuoteIdentifier(conn.Engine(), f.Name)
		if err != nil {
			return err
		}
		cols = append(cols, quoted)
		binds = append(binds, ":"+f.Name)
	}
	cols = append(cols, lastSyncCol)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s, CURRENT_TIMESTAMP)",
		table, strings.Join(cols, ", "), strings.Join(binds, ", "))
	_, err = conn.Execute(ctx, query, values)
	return err
}

func updateEntity(ctx context.Context, conn dbdriver.DBConnection, spec EntitySpec, values dbdriver.Params) error {
	table, err := dbdriver.QuoteIdentifier(conn.Engine(), spec.Table)
	if err != nil {
		return err
	}
	idCol, err := dbdriver.QuoteIdentifier(conn.Engine(), "id")
	if err != nil {
		return err
	}
	lastSyncCol, err := dbdriver.QuoteIdentifier(conn.Engine(), "LastSync")
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(spec.Fields)+1)
	for _, f := range spec.Fields {
		quoted, err := dbdriver.QuoteIdentifier(conn.Engine(), f.Name)
		if err != nil {
			return err
		}
		sets = append(sets, fmt.Sprintf("%s = :%s", quoted, f.Name))
	}
	sets = append(sets, lastSyncCol+" = CURRENT_TIMESTAMP")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :id", table, strings.Join(sets, ", "), idCol)
	_, err = conn.Execute(ctx, query, values)
	return err
}

// GetChanges returns the JSON-materialized rows changed after since,
// ordered ascending by LastSync and capped at maxChangeRows (spec.md §4.5.2).
func GetChanges(ctx context.Context, conn dbdriver.DBConnection, spec EntitySpec, since time.Time) (string, error) {
	table, err := dbdriver.QuoteIdentifier(conn.Engine(), spec.Table)
	if err != nil {
		return "", err
	}
	lastSyncCol, err := dbdriver.QuoteIdentifier(conn.Engine(), "LastSync")
	if err != nil {
		return "", err
	}

	query := changesQuery(conn, table, lastSyncCol)
	return conn.ExecuteJSON(ctx, query, dbdriver.Params{"since": since})
}

func changesQuery(conn dbdriver.DBConnection, table, lastSyncCol string) string {
	if conn.Engine() == config.EngineMSSQL {
		return fmt.Sprintf("SELECT TOP %d * FROM %s WHERE %s > :since ORDER BY %s ASC",
			maxChangeRows, table, lastSyncCol, lastSyncCol)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s > :since ORDER BY %s ASC LIMIT %d",
		table, lastSyncCol, lastSyncCol, maxChangeRows)
}
