package models

import "time"

// EventType names a notification the engine publishes.
type EventType string

const (
	EventSuggestionProposed EventType = "suggestion.proposed"
	EventMatchConfirmed     EventType = "match.confirmed"
	EventSuggestionExpired  EventType = "suggestion.expired"
	EventLockArchived       EventType = "lock.archived"
)

// Event is addressed to a single user. Delivery belongs to the notification
// service.
type Event struct {
	Type         EventType `json:"type"`
	UserID       string    `json:"user_id"`
	RunID        string    `json:"run_id"`
	SuggestionID string    `json:"suggestion_id,omitempty"`
	LockID       string    `json:"lock_id,omitempty"`
	MemberIDs    []string  `json:"member_ids"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SuggestionEvents fans one event out per member.
func SuggestionEvents(t EventType, s *Suggestion, now time.Time) []Event {
	events := make([]Event, 0, len(s.MemberIDs))
	for _, m := range s.MemberIDs {
		events = append(events, Event{
			Type:         t,
			UserID:       m,
			RunID:        s.RunID,
			SuggestionID: s.ID,
			MemberIDs:    s.MemberIDs,
			OccurredAt:   now,
		})
	}
	return events
}

// LockEvents fans one event out per lock member.
func LockEvents(t EventType, l *MatchLock, now time.Time) []Event {
	reason := ""
	if l.LockReason != nil {
		reason = *l.LockReason
	}
	events := make([]Event, 0, len(l.MemberIDs))
	for _, m := range l.MemberIDs {
		e := Event{
			Type:       t,
			UserID:     m,
			RunID:      l.RunID,
			LockID:     l.ID,
			MemberIDs:  l.MemberIDs,
			Reason:     reason,
			OccurredAt: now,
		}
		if l.SuggestionID != nil {
			e.SuggestionID = *l.SuggestionID
		}
		events = append(events, e)
	}
	return events
}
