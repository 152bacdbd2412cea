package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultAppointmentDuration = time.Hour
	calendarDateTimeLayout     = "2006-01-02T15:04:05"
)

// CalendarClient mirrors scheduled appointments into a Google Calendar.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	timeZone   string
	duration   time.Duration
}

// NewCalendarClient authenticates with a service account JSON key.
func NewCalendarClient(ctx context.Context, serviceAccountJSON []byte, calendarID, timeZone string) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("google calendar ID is not configured")
	}

	// create credentials from JSON data
	config, err := google.JWTConfigFromJSON(serviceAccountJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	return NewCalendarClientFromService(srv, calendarID, timeZone), nil
}

func NewCalendarClientFromService(srv *calendar.Service, calendarID, timeZone string) *CalendarClient {
	return &CalendarClient{
		service:    srv,
		calendarID: calendarID,
		timeZone:   timeZone,
		duration:   defaultAppointmentDuration,
	}
}

func (c *CalendarClient) eventFor(appt models.Appointment) *calendar.Event {
	description := fmt.Sprintf("Telefone: %s", appt.Phone)
	if appt.Keyword != "" {
		description += fmt.Sprintf("\nMotivo: %s", appt.Keyword)
	}
	description += fmt.Sprintf("\nOportunidade: %s", appt.OpportunityID)

	return &calendar.Event{
		Summary:     fmt.Sprintf("Consulta: %s", appt.PatientName),
		Description: description,
		Start: &calendar.EventDateTime{
			DateTime: appt.Start.Format(calendarDateTimeLayout),
			TimeZone: c.timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: appt.Start.Add(c.duration).Format(calendarDateTimeLayout),
			TimeZone: c.timeZone,
		},
	}
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}

// UpsertAppointment updates eventID when given and still present, otherwise
// inserts a new event. Returns the id of the event now holding the appointment.
func (c *CalendarClient) UpsertAppointment(ctx context.Context, appt models.Appointment, eventID string) (string, error) {
	event := c.eventFor(appt)

	if eventID != "" {
		updated, err := c.service.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
		if err == nil {
			return updated.Id, nil
		}
		if !isGone(err) {
			return "", fmt.Errorf("unable to update event in Google Calendar: %w", err)
		}
		zap.L().Info("Calendar event no longer exists, creating a new one", zap.String("eventID", eventID))
	}

	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event in Google Calendar: %w", err)
	}

	return created.Id, nil
}

func (c *CalendarClient) DeleteAppointment(ctx context.Context, eventID string) error {
	err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		// It's possible the event was already deleted
		if isGone(err) {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("eventID", eventID))
			return nil
		}
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}

	return nil
}
