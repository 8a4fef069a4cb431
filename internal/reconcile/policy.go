package reconcile

import (
	"strings"
	"time"

	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// DefaultSLA is the age after which a needs-attention order is overdue.
const DefaultSLA = 48 * time.Hour

// attentionSet is the per-source status vocabulary meaning "not yet shipped".
type attentionSet struct {
	statuses    []string
	includeNull bool
}

var needsAttention = map[enums.Source]attentionSet{
	enums.SourceShopify: {
		statuses:    []string{"unfulfilled", "partial", "partially_fulfilled", "scheduled", "on_hold"},
		includeNull: true,
	},
	enums.SourceWooCommerce: {
		statuses: []string{"processing", "on-hold", "partial-paid"},
	},
	enums.SourceManual: {
		statuses: []string{"pending", "processing", "on-hold"},
	},
}

// Policy classifies orders at read time. Nothing it computes is persisted.
type Policy struct {
	sla time.Duration
	now func() time.Time
}

// NewPolicy builds a policy. A non-positive sla falls back to DefaultSLA and a
// nil clock to time.Now.
func NewPolicy(sla time.Duration, now func() time.Time) Policy {
	if sla <= 0 {
		sla = DefaultSLA
	}
	if now == nil {
		now = time.Now
	}
	return Policy{sla: sla, now: now}
}

func (p Policy) SLA() time.Duration { return p.sla }

func (p Policy) Now() time.Time { return p.now().UTC() }

// OverdueBefore is the creation time older than which a needs-attention order
// is overdue.
func (p Policy) OverdueBefore() time.Time {
	return p.Now().Add(-p.sla)
}

// NeedsAttention reports whether status belongs to the source's not-yet-shipped
// vocabulary. Matching ignores case. A nil status needs attention only where
// the source leaves the status unset until fulfillment starts.
func (p Policy) NeedsAttention(source enums.Source, status *string) bool {
	set, ok := needsAttention[source]
	if !ok {
		return false
	}
	if status == nil || strings.TrimSpace(*status) == "" {
		return set.includeNull
	}
	normalized := strings.ToLower(strings.TrimSpace(*status))
	for _, candidate := range set.statuses {
		if candidate == normalized {
			return true
		}
	}
	return false
}

// IsOverdue is NeedsAttention and strictly older than the SLA. Orders without
// a creation date are never overdue.
func (p Policy) IsOverdue(source enums.Source, status *string, created *time.Time) bool {
	if created == nil || created.IsZero() {
		return false
	}
	if !p.NeedsAttention(source, status) {
		return false
	}
	return p.Now().Sub(created.UTC()) > p.sla
}

// AttentionStatuses returns the status filter the repository applies for the
// not-shipped view of source.
func AttentionStatuses(source enums.Source) (statuses []string, includeNull bool) {
	set := needsAttention[source]
	out := make([]string, len(set.statuses))
	copy(out, set.statuses)
	return out, set.includeNull
}
