package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/edrlab/analytics-server/pkg/stor"
	"github.com/google/uuid"
)

func postEvent(t *testing.T, payload string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest("POST", "/api/v1/analytics", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	return executeRequest(req).Result()
}

func storeCount(t *testing.T) int64 {
	t.Helper()
	count, err := s.Store.Event().Count()
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	return count
}

// TestCreateEvent checks the ingestion of a valid event
func TestCreateEvent(t *testing.T) {

	before := time.Now()
	payload := `{"type":"page_visit","sessionId":"session-abc","country":"Chile"}`

	req, _ := http.NewRequest("POST", "/api/v1/analytics", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	response := executeRequest(req)

	if !checkResponseCode(t, http.StatusCreated, response) {
		t.FailNow()
	}

	var ack EventAckResponse
	if err := json.Unmarshal(response.Body.Bytes(), &ack); err != nil {
		t.Fatalf("Failed to decode the acknowledgment: %v", err)
	}
	if !ack.Success || ack.EventID == "" || ack.Type != "page_visit" {
		t.Fatalf("Incomplete acknowledgment: %+v", ack)
	}
	// the timestamp is stamped server side, at or after request receipt
	if ack.Timestamp.Before(before) {
		t.Fatalf("Server timestamp predates the request: %v", ack.Timestamp)
	}

	// the event is retrievable
	event, err := s.Store.Event().Get(ack.EventID)
	if err != nil {
		t.Fatalf("Failed to retrieve the created event: %v", err)
	}
	if event.SessionID != "session-abc" || event.Page != "MEMN_blog" {
		t.Fatalf("Stored event differs from the submission: %+v", event)
	}
}

// TestCreateEventIgnoresClientTimestamp checks that timestamps are never client-supplied
func TestCreateEventIgnoresClientTimestamp(t *testing.T) {

	payload := `{"type":"page_visit","sessionId":"session-ts","country":"Chile","timestamp":"1999-01-01T00:00:00Z"}`
	response := postEvent(t, payload)
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", response.StatusCode)
	}

	var ack EventAckResponse
	json.NewDecoder(response.Body).Decode(&ack)
	if ack.Timestamp.Year() == 1999 {
		t.Fatal("Client supplied timestamp was persisted")
	}
}

// TestCreateEventInvalidType checks the rejection of unknown event types
func TestCreateEventInvalidType(t *testing.T) {

	before := storeCount(t)
	payload := `{"type":"scroll","sessionId":"session-abc","country":"Chile"}`
	response := postEvent(t, payload)

	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", response.StatusCode)
	}
	// the rejection detail includes the allowed set
	var body map[string]interface{}
	json.NewDecoder(response.Body).Decode(&body)
	message, _ := body["message"].(string)
	if !strings.Contains(message, "page_visit") || !strings.Contains(message, "code_copy") {
		t.Fatalf("Rejection detail misses the allowed types: %q", message)
	}
	// nothing was persisted
	if storeCount(t) != before {
		t.Fatal("An invalid event was persisted")
	}
}

// TestCreateEventMissingFields checks required field rejections
func TestCreateEventMissingFields(t *testing.T) {

	before := storeCount(t)

	for _, payload := range []string{
		`{"type":"page_visit","country":"Chile"}`,                    // no sessionId
		`{"type":"page_visit","sessionId":"session-abc"}`,            // no country
		`{"sessionId":"session-abc","country":"Chile"}`,              // no type
		`{"type":"page_visit","sessionId":42,"country":"Chile"}`,     // wrong type
		`{"type":"page_visit","sessionId":"session-abc","country":3}`, // wrong type
		`not json`,
	} {
		response := postEvent(t, payload)
		if response.StatusCode != http.StatusBadRequest {
			t.Fatalf("Expected 400 for %q, got %d", payload, response.StatusCode)
		}
	}

	if storeCount(t) != before {
		t.Fatal("An invalid event was persisted")
	}
}

// TestTypeSpecificFields checks the extra field rules of image_view and code_copy
func TestTypeSpecificFields(t *testing.T) {

	// image_view without a numeric index is rejected
	response := postEvent(t, `{"type":"image_view","sessionId":"session-abc","country":"Chile"}`)
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", response.StatusCode)
	}
	response = postEvent(t, `{"type":"image_view","sessionId":"session-abc","country":"Chile","extra":{"imageIndex":"two"}}`)
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", response.StatusCode)
	}
	response = postEvent(t, `{"type":"image_view","sessionId":"session-abc","country":"Chile","extra":{"imageIndex":2}}`)
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", response.StatusCode)
	}

	// code_copy without a code version is rejected
	response = postEvent(t, `{"type":"code_copy","sessionId":"session-abc","country":"Chile"}`)
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", response.StatusCode)
	}
	response = postEvent(t, `{"type":"code_copy","sessionId":"session-abc","country":"Chile","extra":{"codeVersion":"v2"}}`)
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", response.StatusCode)
	}
}

// TestDuplicateSubmissions checks that identical payloads create distinct events
func TestDuplicateSubmissions(t *testing.T) {

	payload := `{"type":"modal_open","sessionId":"session-dup","country":"Chile"}`

	var ids []string
	for i := 0; i < 2; i++ {
		response := postEvent(t, payload)
		if response.StatusCode != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", response.StatusCode)
		}
		var ack EventAckResponse
		json.NewDecoder(response.Body).Decode(&ack)
		ids = append(ids, ack.EventID)
	}
	if ids[0] == ids[1] {
		t.Fatal("Duplicate submissions share an event id")
	}
}

// TestGetStats checks the filtered query endpoint
func TestGetStats(t *testing.T) {

	session := uuid.New().String()
	now := time.Now().Truncate(time.Second)

	seedEvent(t, stor.EVENT_PAGE_VISIT, session, "France", now.Add(-2*time.Hour), nil)
	seedEvent(t, stor.EVENT_PAGE_VISIT, session, "France", now.Add(-time.Hour), nil)
	seedEvent(t, stor.EVENT_MODAL_NAV, session, "France", now, nil)

	// conjunctive filters: session and type
	req, _ := http.NewRequest("GET", "/api/v1/analytics/stats?sessionId="+session+"&type=page_visit", nil)
	response := executeRequest(req)
	if !checkResponseCode(t, http.StatusOK, response) {
		t.FailNow()
	}

	var stats StatsResponse
	if err := json.Unmarshal(response.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode the stats response: %v", err)
	}
	if !stats.Success || stats.Count != 2 || len(stats.Events) != 2 {
		t.Fatalf("Expected 2 page_visit events, got %+v", stats)
	}
	for _, e := range stats.Events {
		if e.Type != stor.EVENT_PAGE_VISIT {
			t.Fatalf("Filter let through a %s event", e.Type)
		}
	}
	// most recent first
	if stats.Events[0].Timestamp.Before(stats.Events[1].Timestamp) {
		t.Fatal("Events not ordered by timestamp descending")
	}
	// the applied filters are echoed
	if stats.Filters.Type != stor.EVENT_PAGE_VISIT || stats.Filters.Limit != DefaultQueryLimit {
		t.Fatalf("Incorrect filters echo: %+v", stats.Filters)
	}

	// a query matching nothing is not an error
	req, _ = http.NewRequest("GET", "/api/v1/analytics/stats?sessionId="+uuid.New().String(), nil)
	response = executeRequest(req)
	checkResponseCode(t, http.StatusOK, response)
	stats = StatsResponse{}
	json.Unmarshal(response.Body.Bytes(), &stats)
	if stats.Count != 0 || len(stats.Events) != 0 {
		t.Fatalf("Expected an empty result, got %+v", stats)
	}
}

// TestGetStatsLimit checks the limit coercion and its ceiling
func TestGetStatsLimit(t *testing.T) {

	session := uuid.New().String()
	for i := 0; i < 5; i++ {
		seedEvent(t, stor.EVENT_MODAL_CLOSE, session, "Chile", time.Now().Add(-time.Duration(i)*time.Minute), nil)
	}

	// limit bounds the page
	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/v1/analytics/stats?sessionId=%s&limit=3", session), nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response)
	var stats StatsResponse
	json.Unmarshal(response.Body.Bytes(), &stats)
	if stats.Count != 3 {
		t.Fatalf("Expected 3 events with limit 3, got %d", stats.Count)
	}

	// an oversized limit is capped to the ceiling
	req, _ = http.NewRequest("GET", fmt.Sprintf("/api/v1/analytics/stats?sessionId=%s&limit=5000", session), nil)
	response = executeRequest(req)
	checkResponseCode(t, http.StatusOK, response)
	stats = StatsResponse{}
	json.Unmarshal(response.Body.Bytes(), &stats)
	if stats.Filters.Limit != MaxQueryLimit {
		t.Fatalf("Expected the limit capped to %d, got %d", MaxQueryLimit, stats.Filters.Limit)
	}

	// an invalid limit is rejected
	req, _ = http.NewRequest("GET", "/api/v1/analytics/stats?limit=many", nil)
	response = executeRequest(req)
	checkResponseCode(t, http.StatusBadRequest, response)

	// an invalid date is rejected
	req, _ = http.NewRequest("GET", "/api/v1/analytics/stats?startDate=yesterday", nil)
	response = executeRequest(req)
	checkResponseCode(t, http.StatusBadRequest, response)
}

// TestGetSummary checks the aggregation endpoint
func TestGetSummary(t *testing.T) {

	seedEvent(t, stor.EVENT_PAGE_VISIT, "summary-s1", "Chile", time.Now(), nil)
	seedEvent(t, stor.EVENT_PAGE_VISIT, "summary-s1", "Chile", time.Now(), nil)
	seedEvent(t, stor.EVENT_PAGE_VISIT, "summary-s2", "France", time.Now(), nil)

	req, _ := http.NewRequest("GET", "/api/v1/analytics/summary", nil)
	response := executeRequest(req)
	if !checkResponseCode(t, http.StatusOK, response) {
		t.FailNow()
	}

	var payload SummaryResponse
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to decode the summary response: %v", err)
	}
	if !payload.Success || payload.Summary == nil {
		t.Fatalf("Incomplete summary response: %+v", payload)
	}

	// totals match the store at scan time
	if int64(payload.Summary.TotalEvents) != storeCount(t) {
		t.Fatalf("Summary total %d differs from the store count", payload.Summary.TotalEvents)
	}
	if payload.Summary.Countries["Chile"] < 2 {
		t.Fatalf("Incorrect country counts: %v", payload.Summary.Countries)
	}
	if payload.Summary.DateRange.Oldest == nil || payload.Summary.DateRange.Newest == nil {
		t.Fatal("Missing date range on a populated store")
	}
}
