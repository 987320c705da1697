package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Dashboard is the staff home page summary.
type Dashboard struct {
	DossiersByStatus    map[string]int64   `json:"dossiers_by_status"`
	DossiersOpen        int64              `json:"dossiers_open"`
	ClientsActive       int64              `json:"clients_active"`
	TasksOpen           int64              `json:"tasks_open"`
	TasksOverdue        int64              `json:"tasks_overdue"`
	MyTasks             []models.Task      `json:"my_tasks"`
	UpcomingEvents      []models.Evenement `json:"upcoming_events"`
	PendingAppointments int64              `json:"pending_appointments"`
	RecentActivity      []activity.Item    `json:"recent_activity"`
}

type DashboardService struct {
	db       *gorm.DB
	timeline *activity.Timeline
	now      func() time.Time
}

func NewDashboardService(db *gorm.DB, timeline *activity.Timeline) *DashboardService {
	return &DashboardService{db: db, timeline: timeline, now: time.Now}
}

// Build gathers the counters for adminID. Upcoming events cover the next week.
func (s *DashboardService) Build(ctx context.Context, adminID uint) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	out := &Dashboard{DossiersByStatus: make(map[string]int64, len(models.DossierStatuses))}

	var rows []struct {
		Status string
		N      int64
	}
	if err := db.Model(&models.Dossier{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, st := range models.DossierStatuses {
		out.DossiersByStatus[st] = 0
	}
	for _, r := range rows {
		out.DossiersByStatus[r.Status] = r.N
		if d := (models.Dossier{Status: models.DossierStatus(r.Status)}); !d.IsClosed() {
			out.DossiersOpen += r.N
		}
	}

	if err := db.Model(&models.Client{}).Where("is_active = ?", true).Count(&out.ClientsActive).Error; err != nil {
		return nil, err
	}
	open := []string{string(models.TaskAFaire), string(models.TaskEnCours)}
	if err := db.Model(&models.Task{}).Where("status IN ?", open).Count(&out.TasksOpen).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Task{}).Where("status IN ? AND due_date < ?", open, now).Count(&out.TasksOverdue).Error; err != nil {
		return nil, err
	}
	if err := db.Where("assigned_to_id = ? AND status IN ?", adminID, open).
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC").Limit(10).
		Find(&out.MyTasks).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Dossier").Where("date_fin >= ? AND date_debut < ?", now, now.AddDate(0, 0, 7)).
		Order("date_debut ASC").Limit(10).Find(&out.UpcomingEvents).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AppointmentRequest{}).Where("status = ?", models.AppointmentEnAttente).
		Count(&out.PendingAppointments).Error; err != nil {
		return nil, err
	}
	recent, err := s.timeline.Recent(ctx, 10, "")
	if err != nil {
		return nil, err
	}
	out.RecentActivity = recent
	return out, nil
}
