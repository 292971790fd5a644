package service

import (
	"context"
	"database/sql"
	"log"
	"time"

	"surajya/models"
	"surajya/repository"
)

// auditor writes the lifecycle trail. The trail is best effort: a failed
// append is logged and never fails the operation being audited.
type auditor struct {
	store AuditStore
}

func (a auditor) record(ctx context.Context, at time.Time, grievanceID, action string, actor models.ActorType, actorID string, metadata any) {
	if a.store == nil {
		return
	}
	meta, err := repository.SerializeToJSON(metadata)
	if err != nil {
		log.Printf("[AUDIT] %s %s: %v", action, grievanceID, err)
	}
	entry := &models.AuditEntry{
		GrievanceID: grievanceID,
		Action:      action,
		ActorType:   actor,
		ActorID:     sql.NullString{String: actorID, Valid: actorID != ""},
		Metadata:    meta,
		CreatedAt:   at,
	}
	if err := a.store.Append(ctx, entry); err != nil {
		log.Printf("[AUDIT] failed to record %s for grievance %s: %v", action, grievanceID, err)
	}
}
