package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/openbounty/commerce-api/internal/eventbus"
)

// MySQLEventLog records every emitted event before dispatch, for audit and
// replay. Processed is advisory; delivery stays at-least-once.
type MySQLEventLog struct{ db *sql.DB }

func NewMySQLEventLog(db *sql.DB) *MySQLEventLog { return &MySQLEventLog{db: db} }

func (r *MySQLEventLog) Append(ctx context.Context, ev eventbus.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO event_log (id,event_name,payload,processed,created_at)
VALUES (?,?,?,0,?)
`, ev.ID, ev.Name, payload, ev.CreatedAt)
	return err
}

func (r *MySQLEventLog) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE event_log SET processed=1 WHERE id=?`, id)
	return err
}

var _ eventbus.EventLog = (*MySQLEventLog)(nil)
