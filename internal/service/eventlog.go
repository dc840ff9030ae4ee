package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mold_monitor"
	"mold_monitor/internal/repository"
)

// ErrInvalidFilter is returned for log and cycle queries that cannot match anything sensible.
var ErrInvalidFilter = errors.New("invalid filter")

var (
	errInvalidTimeRange = fmt.Errorf("%w: From must be <= To", ErrInvalidFilter)
	errUnknownEventType = fmt.Errorf("%w: unknown event type", ErrInvalidFilter)
)

var eventTypes = map[string]struct{}{
	mold_monitor.EventSessionStart:  {},
	mold_monitor.EventSessionStop:   {},
	mold_monitor.EventCycleStart:    {},
	mold_monitor.EventCycleEnd:      {},
	mold_monitor.EventTriggerGlitch: {},
	mold_monitor.EventReset:         {},
	mold_monitor.EventError:         {},
}

// LogFilter narrows the event log; zero values do not filter.
type LogFilter struct {
	From      time.Time
	To        time.Time
	Type      string
	SessionID string
}

// EventLogService reads the session event log written by the recorder.
type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the
// time range and the event type.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	if eventType != "" {
		if _, ok := eventTypes[eventType]; !ok {
			return time.Time{}, time.Time{}, "", fmt.Errorf("%w %q", errUnknownEventType, f.Type)
		}
	}
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]mold_monitor.SessionEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, repository.EventQuery{
		From:      from,
		To:        to,
		Type:      typ,
		SessionID: strings.TrimSpace(f.SessionID),
	})
}
