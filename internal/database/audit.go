package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

// AuditLog is a core.AuditLog on the audit_log table.
type AuditLog struct {
	db DBTX
}

// NewAuditLog creates an AuditLog.
func NewAuditLog(db DBTX) *AuditLog {
	return &AuditLog{db: db}
}

var _ core.AuditLog = (*AuditLog)(nil)

func (a *AuditLog) Record(ctx context.Context, e core.AuditEntry) error {
	var details []byte
	if e.Details != nil {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}

	var ip *netip.Addr
	if addr, err := netip.ParseAddr(e.IPAddress); err == nil {
		ip = &addr
	}

	_, err := a.db.Exec(ctx,
		`INSERT INTO audit_log (id, action, severity, element_type, batch_id, template_id,
		     user_id, ip_address, rows_affected, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, string(e.Action), string(e.Severity), e.ElementType, e.BatchID, e.TemplateID,
		e.UserID, ip, e.RowsAffected, details, e.CreatedAt,
	)
	return classify("insert audit entry", err)
}

func (a *AuditLog) List(ctx context.Context, q core.AuditQuery) (core.AuditPage, error) {
	q.Page, q.PageSize = core.NormalizePage(q.Page, q.PageSize)

	wb := newWhereBuilder()
	wb.add("action", string(q.Action))
	wb.add("batch_id", q.BatchID)
	if !q.Since.IsZero() {
		wb.addCond("created_at >= $%d", q.Since)
	}
	where, args := wb.build()

	var total int
	if err := a.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return core.AuditPage{}, classify("count audit entries", err)
	}

	query := fmt.Sprintf(`SELECT id::text, action, severity, element_type, batch_id, template_id,
		user_id, ip_address, rows_affected, details, created_at
		FROM audit_log%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		where, wb.next(), wb.next()+1)
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return core.AuditPage{}, classify("list audit entries", err)
	}
	defer rows.Close()

	page := core.AuditPage{Entries: []core.AuditEntry{}, Total: total, Page: q.Page, PageSize: q.PageSize}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return core.AuditPage{}, classify("scan audit entry", err)
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return core.AuditPage{}, classify("list audit entries", err)
	}
	return page, nil
}

func (a *AuditLog) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := a.db.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, classify("purge audit entries", err)
	}
	return tag.RowsAffected(), nil
}

func scanAuditEntry(row pgx.Row) (core.AuditEntry, error) {
	var (
		e                core.AuditEntry
		action, severity string
		ip               *netip.Addr
		details          []byte
	)
	err := row.Scan(&e.ID, &action, &severity, &e.ElementType, &e.BatchID, &e.TemplateID,
		&e.UserID, &ip, &e.RowsAffected, &details, &e.CreatedAt)
	if err != nil {
		return core.AuditEntry{}, err
	}
	e.Action = core.AuditAction(action)
	e.Severity = core.AuditSeverity(severity)
	if ip != nil {
		e.IPAddress = ip.String()
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return core.AuditEntry{}, fmt.Errorf("decode audit details: %w", err)
		}
	}
	return e, nil
}

// whereBuilder assembles a WHERE clause with numbered placeholders.
type whereBuilder struct {
	conds []string
	args  []any
}

func newWhereBuilder() *whereBuilder { return &whereBuilder{} }

// add appends "column = $n" unless value is empty.
func (w *whereBuilder) add(column, value string) {
	if value == "" {
		return
	}
	w.addCond(column+" = $%d", value)
}

// addCond appends a condition whose single %d is replaced by the next
// placeholder number.
func (w *whereBuilder) addCond(format string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) next() int { return len(w.args) + 1 }

func (w *whereBuilder) build() (string, []any) {
	if len(w.conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conds, " AND "), w.args
}
