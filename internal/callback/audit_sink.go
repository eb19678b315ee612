package callback

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/actionfleet/actionfleet/internal/engine"
	bolt "go.etcd.io/bbolt"
)

var completedActionsBucket = []byte("completed_actions")

// AuditSink appends one record per terminal action transition to a BoltDB
// bucket, grounded in the teacher's persistence.go WorkflowStore. Unlike
// that store, AuditSink never reads its own bucket back — there is no
// Get/List here by design, only Put — so it cannot be used to resume a
// run's execution state; it exists purely for an operator to inspect
// after the fact.
type AuditSink struct {
	db *bolt.DB
}

// NewAuditSink opens (creating if necessary) a BoltDB file at path and
// ensures the completed_actions bucket exists.
func NewAuditSink(path string) (*AuditSink, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("audit sink: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(completedActionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("audit sink: init bucket: %w", err)
	}
	return &AuditSink{db: db}, nil
}

// Close releases the underlying BoltDB file handle.
func (s *AuditSink) Close() error {
	return s.db.Close()
}

type auditRecord struct {
	Service    string `json:"service"`
	Action     string `json:"action"`
	Target     string `json:"target"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Retry      int    `json:"retry_remaining"`
}

// Notify records every terminal action status change; every other event
// kind is ignored.
func (s *AuditSink) Notify(kind engine.EventKind, payload any) {
	if kind != engine.EvComplete {
		return
	}
	a, ok := payload.(*engine.Action)
	if !ok {
		return
	}

	rec := auditRecord{
		Action: a.Name,
		Target: a.Target,
		Status: a.Status.String(),
		Retry:  a.Retry(),
	}
	if a.Service != nil {
		rec.Service = a.Service.Name
	}
	if d, ok := a.Duration(); ok {
		rec.DurationMs = d.Milliseconds()
	}

	buf, err := json.Marshal(rec)
	if err != nil {
		return
	}
	key := []byte(fmt.Sprintf("%s/%s/%d", rec.Service, rec.Action, time.Now().UnixNano()))
	_ = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(completedActionsBucket).Put(key, buf)
	})
}
