package model

import "gorm.io/datatypes"

type HistoryEvent struct {
	EventID       uint64         `gorm:"column:event_id;primaryKey;autoIncrement"`
	IncidenceID   uint64         `gorm:"column:incidence_id;not null;index"`
	ActorID       uint64         `gorm:"column:actor_id;not null"`
	ActorRole     string         `gorm:"column:actor_role;type:text;not null"`
	EventType     string         `gorm:"column:event_type;type:text;not null"`
	PreviousState *string        `gorm:"column:previous_state;type:text"`
	NewState      *string        `gorm:"column:new_state;type:text"`
	Comment       *string        `gorm:"column:comment;type:text"`
	Diff          datatypes.JSON `gorm:"column:diff"`
	CreatedAt     string         `gorm:"column:created_at;type:text;not null"`
}

func (HistoryEvent) TableName() string {
	return "history_events"
}
