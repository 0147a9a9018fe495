// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/edrlab/analytics-server/pkg/stor"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultQueryLimit applies when the stats query gives no limit.
	DefaultQueryLimit = 100
	// MaxQueryLimit bounds response size and store read cost.
	MaxQueryLimit = 1000
)

// CreateEvent validates, stamps and records one analytics event.
func (a *APICtrl) CreateEvent(w http.ResponseWriter, r *http.Request) {

	// get the payload
	data := &EventRequest{}
	if err := render.Bind(r, data); err != nil {
		log.Debugf("error binding an analytics event: %v", err)
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	// timestamp and page label are stamped server side, never taken from the client
	event := &stor.Event{
		Timestamp: time.Now(),
		Type:      data.Type,
		SessionID: data.SessionID,
		Country:   data.Country,
		Page:      a.Config.PageLabel,
		Extra:     data.Extra,
	}
	if err := event.Validate(); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	// db create; exactly one event per accepted request, no retry
	if err := a.Store.Event().Create(event); err != nil {
		render.Render(w, r, ErrServer(err))
		return
	}

	log.Infof("Event %s recorded - ID: %s - session: %s", event.Type, event.ID, event.SessionID)

	render.Status(r, http.StatusCreated)
	if err := render.Render(w, r, NewEventAckResponse(event)); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
}

// GetStats returns a filtered page of events, most recent first.
func (a *APICtrl) GetStats(w http.ResponseWriter, r *http.Request) {

	filter, err := eventFilterFromQuery(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	events, err := a.Store.Event().Find(filter)
	if err != nil {
		render.Render(w, r, ErrServer(err))
		return
	}
	if err := render.Render(w, r, NewStatsResponse(events, filter)); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
}

// GetSummary returns summary statistics over all stored events.
func (a *APICtrl) GetSummary(w http.ResponseWriter, r *http.Request) {

	summary, err := a.Store.Summary().GetSummary()
	if err != nil {
		render.Render(w, r, ErrServer(err))
		return
	}
	if err := render.Render(w, r, NewSummaryResponse(summary)); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
}

// --
// local functions
// --

// eventFilterFromQuery builds a conjunctive event filter from URL query parameters.
func eventFilterFromQuery(r *http.Request) (stor.EventFilter, error) {

	filter := stor.EventFilter{Limit: DefaultQueryLimit}

	q := r.URL.Query()
	filter.Type = q.Get("type")
	filter.Country = q.Get("country")
	filter.SessionID = q.Get("sessionId")

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return filter, errors.New("invalid limit parameter")
		}
		filter.Limit = limit
	}
	if filter.Limit > MaxQueryLimit {
		filter.Limit = MaxQueryLimit
	}

	var err error
	if filter.Start, err = parseDateParam(q.Get("startDate")); err != nil {
		return filter, errors.New("invalid startDate parameter")
	}
	if filter.End, err = parseDateParam(q.Get("endDate")); err != nil {
		return filter, errors.New("invalid endDate parameter")
	}
	return filter, nil
}

// parseDateParam accepts timestamps and plain dates.
func parseDateParam(param string) (*time.Time, error) {
	if param == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, param)
	if err != nil {
		t, err = time.Parse("2006-01-02", param)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// --
// Request and Response payloads for the REST api.
// --

// EventRequest is the request payload for event ingestion.
type EventRequest struct {
	Type      string     `json:"type" validate:"required"`
	SessionID string     `json:"sessionId" validate:"required"`
	Country   string     `json:"country" validate:"required"`
	Extra     stor.Extra `json:"extra,omitempty"`
}

// Bind post-processes requests after unmarshalling.
func (e *EventRequest) Bind(r *http.Request) error {
	validate := validator.New()
	if err := validate.Struct(e); err != nil {
		return err
	}
	// extra is optional and defaults to an empty mapping
	if e.Extra == nil {
		e.Extra = stor.Extra{}
	}
	return nil
}

// EventAckResponse is the created-resource acknowledgment.
type EventAckResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	EventID   string    `json:"eventId"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEventAckResponse creates a rendered acknowledgment.
func NewEventAckResponse(event *stor.Event) *EventAckResponse {
	return &EventAckResponse{
		Success:   true,
		Message:   "Event recorded",
		EventID:   event.ID,
		Type:      event.Type,
		Timestamp: event.Timestamp,
	}
}

// Render processes responses before marshalling.
func (e *EventAckResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// StatsFilters echoes the filters applied to a stats query.
type StatsFilters struct {
	Type      string `json:"type,omitempty"`
	Country   string `json:"country,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Limit     int    `json:"limit"`
}

// StatsResponse is the response payload of a stats query.
type StatsResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Events  []stor.Event `json:"events"`
	Filters StatsFilters `json:"filters"`
}

// NewStatsResponse creates a rendered page of events.
func NewStatsResponse(events *[]stor.Event, filter stor.EventFilter) *StatsResponse {
	filters := StatsFilters{
		Type:      filter.Type,
		Country:   filter.Country,
		SessionID: filter.SessionID,
		Limit:     filter.Limit,
	}
	if filter.Start != nil {
		filters.StartDate = filter.Start.Format(time.RFC3339)
	}
	if filter.End != nil {
		filters.EndDate = filter.End.Format(time.RFC3339)
	}
	return &StatsResponse{
		Success: true,
		Count:   len(*events),
		Events:  *events,
		Filters: filters,
	}
}

// Render processes responses before marshalling.
func (s *StatsResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// SummaryResponse is the response payload of the aggregation endpoint.
type SummaryResponse struct {
	Success bool          `json:"success"`
	Summary *stor.Summary `json:"summary"`
}

// NewSummaryResponse creates a rendered summary.
func NewSummaryResponse(summary *stor.Summary) *SummaryResponse {
	return &SummaryResponse{Success: true, Summary: summary}
}

// Render processes responses before marshalling.
func (s *SummaryResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
