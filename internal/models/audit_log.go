package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types for audit logging
const (
	AuditEventTypeLogin          = "login"
	AuditEventTypeLogout         = "logout"
	AuditEventTypeSessionCreated = "session_created"
	AuditEventTypeSessionRotated = "session_rotated"
	AuditEventTypeTosAccepted    = "tos_accepted"
	AuditEventTypeVaultLock      = "vault_lock"
	AuditEventTypeVaultUnlock    = "vault_unlock"
	AuditEventTypePassphrase     = "passphrase_change"
	AuditEventTypeRecoveryReset  = "recovery_reset"
	AuditEventTypeRecoveryCodes  = "recovery_codes_generated"
	AuditEventTypeAdminClaim     = "admin_claim"
)

// Resource types
const (
	AuditResourceTypeUser    = "user"
	AuditResourceTypeSession = "session"
	AuditResourceTypeVault   = "vault"
)

type AuditLog struct {
	ID           uuid.UUID
	EventType    string
	ActorID      *uuid.UUID
	ResourceType *string
	ResourceID   *string
	Action       string
	Success      bool
	IPAddress    *string
	UserAgent    *string
	Metadata     AuditMetadata
	CreatedAt    time.Time
}

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(am)
}
