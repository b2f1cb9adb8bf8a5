package core

import (
	"context"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalog-import/internal/logging"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionBatchCreate    AuditAction = "batch_create"
	ActionBatchExecute   AuditAction = "batch_execute"
	ActionTemplateCreate AuditAction = "template_create"
	ActionTemplateUpdate AuditAction = "template_update"
	ActionTemplateDelete AuditAction = "template_delete"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	ElementType  string         `json:"elementType,omitempty"`
	BatchID      string         `json:"batchId,omitempty"`
	TemplateID   string         `json:"templateId,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditQuery filters audit log reads. Zero fields match everything.
type AuditQuery struct {
	Action   AuditAction
	BatchID  string
	Since    time.Time
	Page     int
	PageSize int
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries  []AuditEntry `json:"entries"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}

// AuditLog stores audit entries.
type AuditLog interface {
	Record(ctx context.Context, e AuditEntry) error
	List(ctx context.Context, q AuditQuery) (AuditPage, error)
	// Purge deletes entries created before cutoff and returns how many.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

func auditSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionBatchExecute:
		return SeverityHigh
	case ActionTemplateCreate, ActionTemplateUpdate, ActionTemplateDelete:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// normalizeIP strips a port and returns "" for unparseable addresses.
func normalizeIP(addr string) string {
	if addr == "" {
		return ""
	}
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return ""
	}
	return ip.String()
}

// audit records e with the user and IP from ctx. Audit failures are logged
// and never fail the operation being audited.
func (s *Service) audit(ctx context.Context, e AuditEntry) {
	e.ID = uuid.NewString()
	e.Severity = auditSeverity(e.Action)
	e.CreatedAt = time.Now().UTC()
	if e.UserID == "" {
		e.UserID = UserIDFromContext(ctx)
	}
	e.IPAddress = normalizeIP(IPAddressFromContext(ctx))

	if err := s.auditLog.Record(context.WithoutCancel(ctx), e); err != nil {
		logging.FromContext(ctx).Warn("audit record failed", "action", e.Action, "error", err)
	}
}

// AuditEntries returns one page of the audit log.
func (s *Service) AuditEntries(ctx context.Context, q AuditQuery) (AuditPage, error) {
	q.Page, q.PageSize = NormalizePage(q.Page, q.PageSize)
	return s.auditLog.List(ctx, q)
}

// MemoryAuditLog is an in-process AuditLog.
type MemoryAuditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

// NewMemoryAuditLog creates an empty MemoryAuditLog.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (m *MemoryAuditLog) Record(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryAuditLog) List(_ context.Context, q AuditQuery) (AuditPage, error) {
	q.Page, q.PageSize = NormalizePage(q.Page, q.PageSize)

	m.mu.RLock()
	var matched []AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.BatchID != "" && e.BatchID != q.BatchID {
			continue
		}
		if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
			continue
		}
		matched = append(matched, e)
	}
	m.mu.RUnlock()

	page := AuditPage{Entries: []AuditEntry{}, Total: len(matched), Page: q.Page, PageSize: q.PageSize}
	start := (q.Page - 1) * q.PageSize
	if start < len(matched) {
		page.Entries = slices.Clone(matched[start:min(start+q.PageSize, len(matched))])
	}
	return page, nil
}

func (m *MemoryAuditLog) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.entries)
	m.entries = slices.DeleteFunc(m.entries, func(e AuditEntry) bool { return e.CreatedAt.Before(cutoff) })
	return int64(before - len(m.entries)), nil
}
