// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package stor

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// List of event types as strings
const (
	EVENT_PAGE_VISIT  = "page_visit"
	EVENT_IMAGE_VIEW  = "image_view"
	EVENT_MODAL_OPEN  = "modal_open"
	EVENT_MODAL_CLOSE = "modal_close"
	EVENT_MODAL_NAV   = "modal_nav"
	EVENT_CODE_COPY   = "code_copy"
)

// EventTypes is the closed set of accepted event types.
var EventTypes = []string{
	EVENT_PAGE_VISIT,
	EVENT_IMAGE_VIEW,
	EVENT_MODAL_OPEN,
	EVENT_MODAL_CLOSE,
	EVENT_MODAL_NAV,
	EVENT_CODE_COPY,
}

// Extra holds the open, type-dependent part of an event.
// It is persisted as a json column.
type Extra map[string]interface{}

// Value implements driver.Valuer
func (x Extra) Value() (driver.Value, error) {
	if x == nil {
		x = Extra{}
	}
	return json.Marshal(x)
}

// Scan implements sql.Scanner
func (x *Extra) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*x = Extra{}
		return nil
	case []byte:
		return json.Unmarshal(v, x)
	case string:
		return json.Unmarshal([]byte(v), x)
	}
	return fmt.Errorf("unsupported extra column type %T", value)
}

// Event data model
// we don't include the full gorm model here, as no update nor soft deletion occurs on events
type Event struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	Type      string    `json:"type" gorm:"index"`
	SessionID string    `json:"sessionId" gorm:"index"`
	Country   string    `json:"country" gorm:"index"`
	Page      string    `json:"page"`
	Extra     Extra     `json:"extra" gorm:"type:text"`
}

// Validate checks required fields and values.
// The type must belong to the closed set of event types, and types carrying
// structured payloads must provide their specific extra fields.
func (e *Event) Validate() error {

	found := false
	for _, t := range EventTypes {
		if e.Type == t {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid event type %q, valid types: %s", e.Type, strings.Join(EventTypes, ", "))
	}
	if e.SessionID == "" {
		return errors.New("required field missing: sessionId")
	}
	if e.Country == "" {
		return errors.New("required field missing: country")
	}
	if e.Type == EVENT_IMAGE_VIEW {
		if _, ok := e.Extra["imageIndex"].(float64); !ok {
			// integers survive a json round trip as float64
			if _, ok := e.Extra["imageIndex"].(int); !ok {
				return errors.New("image_view requires extra.imageIndex (number)")
			}
		}
	}
	if e.Type == EVENT_CODE_COPY {
		if v, ok := e.Extra["codeVersion"]; !ok || v == nil || v == "" {
			return errors.New("code_copy requires extra.codeVersion")
		}
	}
	return nil
}

// EventFilter carries the optional, conjunctive criteria of an event query.
type EventFilter struct {
	Type      string
	Country   string
	SessionID string
	Start     *time.Time
	End       *time.Time
	Limit     int
}

func (s eventStore) Find(filter EventFilter) (*[]Event, error) {
	events := []Event{}

	tx := s.db.Order("timestamp DESC")
	if filter.Type != "" {
		tx = tx.Where("type = ?", filter.Type)
	}
	if filter.Country != "" {
		tx = tx.Where("country = ?", filter.Country)
	}
	if filter.SessionID != "" {
		tx = tx.Where("session_id = ?", filter.SessionID)
	}
	// start and end bound the timestamp inclusively
	if filter.Start != nil {
		tx = tx.Where("timestamp >= ?", *filter.Start)
	}
	if filter.End != nil {
		tx = tx.Where("timestamp <= ?", *filter.End)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	return &events, tx.Find(&events).Error
}

func (s eventStore) Count() (int64, error) {
	var count int64
	return count, s.db.Model(Event{}).Count(&count).Error
}

func (s eventStore) Get(id string) (*Event, error) {
	var event Event
	return &event, s.db.Where("id = ?", id).First(&event).Error
}

// Create stores a new event. The identifier is assigned by the store,
// the caller never provides one.
func (s eventStore) Create(newEvent *Event) error {
	newEvent.ID = uuid.New().String()
	return s.db.Create(newEvent).Error
}
