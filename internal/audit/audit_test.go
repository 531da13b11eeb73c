package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
)

func newTestService() *Service {
	return New(nil, log.New(io.Discard, "", 0))
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	svc := New(nil, log.New(&buf, "", 0))
	ctx := context.Background()

	err := svc.Log(ctx, EventGameStarted, "Game started",
		map[string]int{"duration": 5}, WithAgent("agent-1"), WithGame("game_1"))
	if err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}

	events, _ := svc.GetEvents(ctx, nil)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("Expected ID and timestamp to be set, got %+v", e)
	}
	if e.AgentID != "agent-1" || e.GameID != "game_1" {
		t.Errorf("Expected agent-1/game_1, got %s/%s", e.AgentID, e.GameID)
	}

	var data map[string]int
	if err := json.Unmarshal(e.Data, &data); err != nil || data["duration"] != 5 {
		t.Errorf("Expected duration 5 in data, got %s", e.Data)
	}

	if !strings.Contains(buf.String(), "audit: game_started agent=agent-1 game=game_1") {
		t.Errorf("Expected event in log output, got %q", buf.String())
	}
}

func TestGetEventsFilter(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	svc.Log(ctx, EventTokenIssued, "issued", nil, WithAgent("agent-1"))
	svc.Log(ctx, EventGameStarted, "started", nil, WithAgent("agent-1"), WithGame("game_1"))
	svc.Log(ctx, EventGameStarted, "started", nil, WithAgent("agent-2"), WithGame("game_2"))
	svc.Log(ctx, EventGameFinished, "finished", nil, WithAgent("agent-1"), WithGame("game_1"))

	tests := []struct {
		name   string
		filter *EventFilter
		want   []string
	}{
		{"All", nil, []string{EventGameFinished, EventGameStarted, EventGameStarted, EventTokenIssued}},
		{"ByAgent", &EventFilter{AgentID: "agent-2"}, []string{EventGameStarted}},
		{"ByGame", &EventFilter{GameID: "game_1"}, []string{EventGameFinished, EventGameStarted}},
		{"ByType", &EventFilter{Type: EventTokenIssued}, []string{EventTokenIssued}},
		{"Limit", &EventFilter{AgentID: "agent-1", Limit: 2}, []string{EventGameFinished, EventGameStarted}},
		{"NoMatch", &EventFilter{AgentID: "agent-3"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := svc.GetEvents(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Failed to get events: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("Expected %d events, got %d", len(tt.want), len(events))
			}
			for i, e := range events {
				if e.Type != tt.want[i] {
					t.Errorf("Event %d: expected %s, got %s", i, tt.want[i], e.Type)
				}
			}
		})
	}
}

func TestRecentLimit(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for i := 0; i < recentLimit+10; i++ {
		svc.Log(ctx, EventGameStarted, fmt.Sprintf("event %d", i), nil)
	}

	if len(svc.recent) != recentLimit {
		t.Errorf("Expected %d retained events, got %d", recentLimit, len(svc.recent))
	}
	if svc.recent[0].Description != "event 10" {
		t.Errorf("Expected oldest retained event 10, got %s", svc.recent[0].Description)
	}

	events, _ := svc.GetEvents(ctx, &EventFilter{Limit: 1})
	if len(events) != 1 || events[0].Description != fmt.Sprintf("event %d", recentLimit+9) {
		t.Errorf("Expected newest event first, got %+v", events)
	}
}

func TestNilService(t *testing.T) {
	var svc *Service
	ctx := context.Background()

	if err := svc.Log(ctx, EventAuthFailed, "ignored", nil); err != nil {
		t.Errorf("Expected nil service to discard events, got %v", err)
	}
	events, err := svc.GetEvents(ctx, nil)
	if err != nil || events != nil {
		t.Errorf("Expected no events, got %v, %v", events, err)
	}
}
