package models

import "time"

// TaskStatus is the progress of a task.
type TaskStatus string

const (
	TaskAFaire   TaskStatus = "a_faire"
	TaskEnCours  TaskStatus = "en_cours"
	TaskTerminee TaskStatus = "terminee"
	TaskAnnulee  TaskStatus = "annulee"
)

var TaskStatuses = []string{string(TaskAFaire), string(TaskEnCours), string(TaskTerminee), string(TaskAnnulee)}

// TaskPriority orders tasks.
type TaskPriority string

const (
	PriorityBasse   TaskPriority = "basse"
	PriorityNormale TaskPriority = "normale"
	PriorityHaute   TaskPriority = "haute"
	PriorityUrgente TaskPriority = "urgente"
)

var TaskPriorities = []string{string(PriorityBasse), string(PriorityNormale), string(PriorityHaute), string(PriorityUrgente)}

// Task is a to-do item on a dossier.
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DossierID uint `gorm:"index;not null" json:"dossier_id"`

	Titre       string       `gorm:"size:255;not null" json:"titre"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Status      TaskStatus   `gorm:"size:20;not null;default:'a_faire'" json:"status"`
	Priority    TaskPriority `gorm:"size:20;not null;default:'normale'" json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`

	AssignedToID *uint  `gorm:"index" json:"assigned_to_id,omitempty"`
	AssignedTo   *Admin `gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL" json:"assigned_to,omitempty"`
	CreatedByID  *uint  `json:"created_by_id,omitempty"`

	// CompletedAt is set when Status becomes terminee and cleared otherwise.
	CompletedAt *time.Time `json:"completed_at"`
}

// SetStatus applies a status transition and keeps CompletedAt consistent.
func (t *Task) SetStatus(s TaskStatus, now time.Time) {
	if s == TaskTerminee {
		if t.Status != TaskTerminee || t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = s
}
