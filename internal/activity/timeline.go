package activity

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/models"
)

// Grouped filter categories.
const (
	CategoryOneDrive = "onedrive"
	CategoryGoogle   = "google"
)

type Query struct {
	Limit  int
	Offset int
	// Action is a category or an action prefix such as "task".
	Action string
}

// Item is a log row with its display tuple.
type Item struct {
	models.ActivityLog
	Display
	// ResourceExists is false once the logged resource has been deleted.
	ResourceExists bool `json:"resource_exists"`
}

type Timeline struct {
	db *gorm.DB
}

func NewTimeline(db *gorm.DB) *Timeline { return &Timeline{db: db} }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// filter applies the action category to q.
func filter(q *gorm.DB, action string) *gorm.DB {
	switch action = strings.TrimSpace(strings.ToLower(action)); action {
	case "", "all":
		return q
	case CategoryOneDrive:
		return q.Where(`(action LIKE 'onedrive%' OR action LIKE '%\_onedrive' ESCAPE '\' OR action LIKE 'dossier.onedrive%')`)
	case CategoryGoogle:
		return q.Where(`(action LIKE 'google%' OR action LIKE '%\_google' ESCAPE '\' OR action LIKE 'event.google%')`)
	default:
		return q.Where(`action LIKE ? ESCAPE '\'`, likeEscaper.Replace(action)+"%")
	}
}

// ForDossier returns the dossier's own entries and those of everything it
// owns, newest first, with the unpaginated total.
func (t *Timeline) ForDossier(ctx context.Context, dossierID uint, q Query) ([]Item, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	base := t.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Where("((resource_type = ? AND resource_id = ?) OR dossier_id = ?)", ResourceDossier, dossierID, dossierID)
	base = filter(base, q.Action)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ActivityLog
	if err := base.Session(&gorm.Session{}).Order("created_at DESC, id DESC").Limit(q.Limit).Offset(q.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	items, err := t.decorate(ctx, rows)
	return items, total, err
}

// Recent is the firm-wide feed of the dashboard.
func (t *Timeline) Recent(ctx context.Context, limit int, action string) ([]Item, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []models.ActivityLog
	q := filter(t.db.WithContext(ctx).Model(&models.ActivityLog{}), action)
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return t.decorate(ctx, rows)
}

var resourceModels = map[string]any{
	ResourceDossier:     &models.Dossier{},
	ResourceDocument:    &models.Document{},
	ResourceEvent:       &models.Evenement{},
	ResourceNote:        &models.Note{},
	ResourceTask:        &models.Task{},
	ResourceClient:      &models.Client{},
	ResourceAdmin:       &models.Admin{},
	ResourceAppointment: &models.AppointmentRequest{},
}

// decorate renders every row and checks, one query per resource type, which
// resources still exist.
func (t *Timeline) decorate(ctx context.Context, rows []models.ActivityLog) ([]Item, error) {
	ids := map[string][]uint{}
	for _, r := range rows {
		if _, ok := resourceModels[r.ResourceType]; ok {
			ids[r.ResourceType] = append(ids[r.ResourceType], r.ResourceID)
		}
	}
	existing := map[string]map[uint]bool{}
	for typ, list := range ids {
		var found []uint
		if err := t.db.WithContext(ctx).Model(resourceModels[typ]).Where("id IN ?", list).Pluck("id", &found).Error; err != nil {
			return nil, err
		}
		set := make(map[uint]bool, len(found))
		for _, id := range found {
			set[id] = true
		}
		existing[typ] = set
	}
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		exists := true
		if set, ok := existing[r.ResourceType]; ok {
			exists = set[r.ResourceID]
		}
		items = append(items, Item{ActivityLog: r, Display: Render(r), ResourceExists: exists})
	}
	return items, nil
}
