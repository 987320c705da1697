package health

import (
	"context"

	"github.com/diewo77/portail-cabinet/internal/gcalendar"
	"github.com/diewo77/portail-cabinet/internal/onedrive"
)

// QuotaSource is satisfied by *onedrive.Client.
type QuotaSource interface {
	Drive(ctx context.Context) (*onedrive.Drive, error)
}

// CalendarSource is satisfied by *gcalendar.Client.
type CalendarSource interface {
	ListCalendars(ctx context.Context) ([]gcalendar.Calendar, error)
}

// OneDriveProbe fetches the drive quota.
func OneDriveProbe(src QuotaSource) Probe {
	return func(ctx context.Context) (map[string]any, error) {
		d, err := src.Drive(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"drive_type": d.DriveType,
			"quota": map[string]any{
				"total":     d.Quota.Total,
				"used":      d.Quota.Used,
				"remaining": d.Quota.Remaining,
				"state":     d.Quota.State,
			},
		}, nil
	}
}

// GoogleCalendarProbe lists the writable calendars.
func GoogleCalendarProbe(src CalendarSource) Probe {
	return func(ctx context.Context) (map[string]any, error) {
		cals, err := src.ListCalendars(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"calendar_count": len(cals)}, nil
	}
}
