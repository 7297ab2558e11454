package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Audit actions for privileged mutations
const (
	AuditActionRoleChange     = "role_change"
	AuditActionSuspendUser    = "suspend_user"
	AuditActionReinstateUser  = "reinstate_user"
	AuditActionRevokeSessions = "revoke_sessions"
)

// AuditEntry is an immutable record of a privileged mutation. Entries are
// append-only; the application never updates or deletes them.
type AuditEntry struct {
	ID           string       `db:"id"` // ulid, lexically sortable by creation time
	ActorID      string       `db:"actor_id"`
	Action       string       `db:"action"`
	ResourcePath string       `db:"resource_path"`
	IPAddress    string       `db:"ip_address"`
	UserAgent    string       `db:"user_agent"`
	Details      AuditDetails `db:"details"`
	CreatedAt    time.Time    `db:"created_at"`
}

// AuditDetails holds redacted context for an audit entry. Values are
// sanitized before the entry is constructed; see pkg/logger.
type AuditDetails map[string]string

// Scan implements sql.Scanner for JSONB
func (d *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(AuditDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]string
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
