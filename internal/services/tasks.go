package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/validation"
)

type TaskInput struct {
	Titre        string              `json:"titre"`
	Description  string              `json:"description"`
	Status       models.TaskStatus   `json:"status"`
	Priority     models.TaskPriority `json:"priority"`
	DueDate      *time.Time          `json:"due_date"`
	AssignedToID *uint               `json:"assigned_to_id"`
}

func (in *TaskInput) validate() error {
	v := make(validation.Violations)
	in.Titre = strings.TrimSpace(in.Titre)
	validation.Required("titre", in.Titre, v)
	validation.MaxLen("titre", in.Titre, 255, v)
	validation.OneOf("status", string(in.Status), models.TaskStatuses, v)
	validation.OneOf("priority", string(in.Priority), models.TaskPriorities, v)
	return invalid(v)
}

// TaskFilter narrows List. Open keeps a_faire and en_cours only.
type TaskFilter struct {
	DossierID    uint
	AssignedToID uint
	Status       string
	Priority     string
	Open         bool
}

type TaskService struct {
	db       *gorm.DB
	activity *activity.Logger
	now      func() time.Time
}

func NewTaskService(db *gorm.DB, act *activity.Logger) *TaskService {
	return &TaskService{db: db, activity: act, now: time.Now}
}

// List orders by due date (undated last), then priority.
func (s *TaskService) List(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Model(&models.Task{})
	if f.DossierID != 0 {
		q = q.Where("dossier_id = ?", f.DossierID)
	}
	if f.AssignedToID != 0 {
		q = q.Where("assigned_to_id = ?", f.AssignedToID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Open {
		q = q.Where("status IN ?", []string{string(models.TaskAFaire), string(models.TaskEnCours)})
	}
	var out []models.Task
	err := q.Preload("AssignedTo").
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC").
		Order("CASE priority WHEN 'urgente' THEN 0 WHEN 'haute' THEN 1 WHEN 'normale' THEN 2 ELSE 3 END").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (s *TaskService) Get(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TaskService) Create(ctx context.Context, actor activity.Actor, dossierID uint, in TaskInput) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Dossier{}).Where("id = ?", dossierID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	t := models.Task{
		DossierID:    dossierID,
		Titre:        in.Titre,
		Description:  in.Description,
		Status:       models.TaskAFaire,
		Priority:     in.Priority,
		DueDate:      in.DueDate,
		AssignedToID: in.AssignedToID,
		CreatedByID:  actor.ID,
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNormale
	}
	if in.Status != "" {
		t.SetStatus(in.Status, s.now())
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, err
	}
	s.activity.TaskCreated(ctx, actor, &t)
	return &t, nil
}

// Update rewrites the task; the status transition keeps completed_at consistent.
func (s *TaskService) Update(ctx context.Context, actor activity.Actor, id uint, in TaskInput) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Titre, t.Description, t.DueDate, t.AssignedToID = in.Titre, in.Description, in.DueDate, in.AssignedToID
	if in.Priority != "" {
		t.Priority = in.Priority
	}
	status := t.Status
	if in.Status != "" {
		status = in.Status
	}
	return s.save(ctx, actor, t, status)
}

// Complete moves the task to terminee.
func (s *TaskService) Complete(ctx context.Context, actor activity.Actor, id uint) (*models.Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, actor, t, models.TaskTerminee)
}

// Reopen moves the task back to a_faire.
func (s *TaskService) Reopen(ctx context.Context, actor activity.Actor, id uint) (*models.Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, actor, t, models.TaskAFaire)
}

func (s *TaskService) save(ctx context.Context, actor activity.Actor, t *models.Task, status models.TaskStatus) (*models.Task, error) {
	from := t.Status
	t.SetStatus(status, s.now())
	t.AssignedTo = nil
	if err := s.db.WithContext(ctx).Omit("AssignedTo").Save(t).Error; err != nil {
		return nil, err
	}
	switch {
	case from != models.TaskTerminee && t.Status == models.TaskTerminee:
		s.activity.TaskCompleted(ctx, actor, t)
	case from == models.TaskTerminee && t.Status != models.TaskTerminee:
		s.activity.TaskReopened(ctx, actor, t)
	default:
		s.activity.TaskUpdated(ctx, actor, t)
	}
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, actor activity.Actor, id uint) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Task{}, id).Error; err != nil {
		return err
	}
	s.activity.TaskDeleted(ctx, actor, t)
	return nil
}
