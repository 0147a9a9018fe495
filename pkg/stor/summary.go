// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package stor

import (
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Summary data model
type DateRange struct {
	Oldest *time.Time `json:"oldest"`
	Newest *time.Time `json:"newest"`
}

type Summary struct {
	TotalEvents    int            `json:"totalEvents"`
	EventTypes     map[string]int `json:"eventTypes"`
	Countries      map[string]int `json:"countries"`
	UniqueSessions int            `json:"uniqueSessions"`
	CodeVersions   map[string]int `json:"codeVersions"`
	ImageViews     map[string]int `json:"imageViews"`
	DateRange      DateRange      `json:"dateRange"`
}

// GetSummary provides summary statistics about all stored events.
// This is a full scan of the events table; acceptable while the dataset
// stays small. Reused at a larger scale, it would have to be replaced by
// incrementally maintained counters.
func (s summaryStore) GetSummary() (*Summary, error) {
	summary := Summary{
		EventTypes:   map[string]int{},
		Countries:    map[string]int{},
		CodeVersions: map[string]int{},
		ImageViews:   map[string]int{},
	}

	// Temporary variables for counts (GORM uses int64)
	var totalEvents, uniqueSessions int64

	// Count total events
	if err := s.db.Model(&Event{}).Count(&totalEvents).Error; err != nil {
		return nil, err
	}
	summary.TotalEvents = int(totalEvents)

	// Count unique sessions
	if err := s.db.Model(&Event{}).Distinct("session_id").Count(&uniqueSessions).Error; err != nil {
		return nil, err
	}
	summary.UniqueSessions = int(uniqueSessions)

	// Get event type counts
	var typeCounts []struct {
		Type  string
		Count int64
	}
	if err := s.db.Model(&Event{}).Select("type, count(*) as count").Group("type").Scan(&typeCounts).Error; err != nil {
		return nil, err
	}
	for _, tc := range typeCounts {
		summary.EventTypes[tc.Type] = int(tc.Count)
	}

	// Get country counts
	var countryCounts []struct {
		Country string
		Count   int64
	}
	if err := s.db.Model(&Event{}).Select("country, count(*) as count").Group("country").Scan(&countryCounts).Error; err != nil {
		return nil, err
	}
	for _, cc := range countryCounts {
		summary.Countries[cc.Country] = int(cc.Count)
	}

	// Date of the oldest event; an empty table gives a null range
	var oldestEvent Event
	err := s.db.Model(&Event{}).Order("timestamp ASC").First(&oldestEvent).Error
	if err == nil {
		oldest := oldestEvent.Timestamp
		summary.DateRange.Oldest = &oldest
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Date of the most recent event
	var newestEvent Event
	err = s.db.Model(&Event{}).Order("timestamp DESC").First(&newestEvent).Error
	if err == nil {
		newest := newestEvent.Timestamp
		summary.DateRange.Newest = &newest
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Code version and image view counts depend on the json extra column.
	// Get the relevant events and process them in Go, which works across
	// all database dialects.
	var extraEvents []Event
	if err := s.db.Model(&Event{}).
		Select("type, extra").
		Where("type IN ?", []string{EVENT_CODE_COPY, EVENT_IMAGE_VIEW}).
		Find(&extraEvents).Error; err != nil {
		return nil, err
	}

	for _, e := range extraEvents {
		switch e.Type {
		case EVENT_CODE_COPY:
			if version, ok := e.Extra["codeVersion"].(string); ok && version != "" {
				summary.CodeVersions[version]++
			}
		case EVENT_IMAGE_VIEW:
			if index, ok := e.Extra["imageIndex"].(float64); ok {
				summary.ImageViews[strconv.Itoa(int(index))]++
			}
		}
	}

	return &summary, nil
}
