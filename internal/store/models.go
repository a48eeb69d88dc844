// Package store is the durable SQLite shadow of a running daemon: session
// lifecycle, refactor outcomes, and R8 structural events, written
// write-behind so the analysis thread never blocks on disk I/O. Grounded on
// termfx-morfx's models package and its Stage/Apply/Session gorm models,
// generalized from a code-transformation MCP server's request/response
// shape to a persistent daemon's edit-stream shape.
package store

import (
	"time"

	"gorm.io/datatypes"
)

// SessionRecord is one row per accepted editor connection.
type SessionRecord struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	EditorID   int    `gorm:"not null"`
	ProjectDir string `gorm:"type:varchar(1024);not null"`
	PeerUID    uint32 `gorm:"not null"`

	StartedAt time.Time `gorm:"autoCreateTime;index"`
	EndedAt   *time.Time

	RefactorsEmitted   int `gorm:"default:0"`
	RefactorsDiscarded int `gorm:"default:0"`
}

func (SessionRecord) TableName() string { return "sessions" }

// RefactorRecord is one row per refactor reaching Emitted or Discarded,
// mirroring models.Stage/models.Apply's split between a proposed and a
// committed transformation, collapsed into one row since a refactor here
// either lands or doesn't -- there is no separate stage/apply step to
// track.
type RefactorRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	SessionID string `gorm:"type:varchar(36);index;not null"`

	Recognizer string `gorm:"type:varchar(64);not null;index"`
	State      string `gorm:"type:varchar(20);not null"`
	Reason     string `gorm:"type:varchar(40)"`

	TriggerFile string `gorm:"type:varchar(1024)"`

	// Edits is the serialized []refactor.Edit for an Emitted refactor, nil
	// for a Discarded one.
	Edits datatypes.JSON `gorm:"type:jsonb"`

	// Diff is a unified diff of the trigger file's content before and after
	// the refactor's edits, empty for a Discarded refactor. Human-readable
	// audit trail entry a developer can read without replaying Edits.
	Diff string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (RefactorRecord) TableName() string { return "refactors" }

// StructuralEventRecord is one row per R8 structural event
// (TypeAliasAdded, TypeRemoved, ...), the durable audit trail the
// concrete-scenario test hook reads from since these events have no wire
// representation of their own.
type StructuralEventRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"type:varchar(36);index;not null"`

	Kind   string `gorm:"type:varchar(30);not null"`
	Module string `gorm:"type:varchar(255);not null"`
	Name   string `gorm:"type:varchar(255);not null"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (StructuralEventRecord) TableName() string { return "structural_events" }

// KBSnapshotRecord is a best-effort snapshot of the knowledge base's
// relation sizes, written on each recomputation as a diagnostics record.
// Nothing in the daemon reads these rows back; the knowledge base is
// always rebuilt from scratch on restart.
type KBSnapshotRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"type:varchar(36);index;not null"`

	Modules      int `gorm:"not null"`
	Declarations int `gorm:"not null"`
	Imports      int `gorm:"not null"`
	Scopes       int `gorm:"not null"`
	Occurrences  int `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (KBSnapshotRecord) TableName() string { return "kb_snapshots" }
