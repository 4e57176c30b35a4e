package mirror

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendar mirrors bookings into a Google Calendar using a service
// account. Events carry the clinic's standard popup reminders (60 and 15
// minutes before the appointment).
type GoogleCalendar struct {
	svc        *calendar.Service
	calendarID string
	timezone   *time.Location
}

func NewGoogleCalendar(ctx context.Context, credentialsFile, calendarID string, tz *time.Location) (*GoogleCalendar, error) {
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(calendar.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	if calendarID == "" {
		calendarID = "primary"
	}
	if tz == nil {
		tz = time.UTC
	}

	return &GoogleCalendar{svc: svc, calendarID: calendarID, timezone: tz}, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, id string, ev Event) (string, error) {
	body := g.toCalendarEvent(ev)
	body.Id = eventID(id)

	created, err := g.svc.Events.Insert(g.calendarID, body).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleCalendar) UpdateEvent(ctx context.Context, id string, ev Event) error {
	_, err := g.svc.Events.Patch(g.calendarID, eventID(id), g.toCalendarEvent(ev)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("patch calendar event: %w", err)
	}
	return nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, id string) error {
	if err := g.svc.Events.Delete(g.calendarID, eventID(id)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

// eventID derives the calendar event id from the appointment id, so update
// and delete address the event create made without storing the external id.
// Google event ids allow base32hex characters only; lowercased UUID hex with
// the hyphens stripped satisfies that.
func eventID(appointmentID string) string {
	return strings.ToLower(strings.ReplaceAll(appointmentID, "-", ""))
}

func (g *GoogleCalendar) toCalendarEvent(ev Event) *calendar.Event {
	out := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.In(g.timezone).Format(time.RFC3339),
			TimeZone: g.timezone.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: ev.End.In(g.timezone).Format(time.RFC3339),
			TimeZone: g.timezone.String(),
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: 60},
				{Method: "popup", Minutes: 15},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if ev.AttendeeEmail != "" {
		out.Attendees = []*calendar.EventAttendee{
			{Email: ev.AttendeeEmail, DisplayName: ev.AttendeeName},
		}
	}

	return out
}
