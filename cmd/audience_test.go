package cmd

import (
	"testing"

	"github.com/derickschaefer/tubestats/internal/model"
)

func TestAudienceSectionsFlattensTraffic(t *testing.T) {
	p := &model.Payload{
		Demographics: map[string]model.Table{
			"age_gender": {Headers: []string{"age", "share"}, Rows: [][]interface{}{{"18-24", 0.4}}},
		},
		TrafficSources: []map[string]interface{}{
			{"source": "search", "views": 10.0},
			{"source": "external", "minutes": 4.0},
		},
	}
	sections := audienceSections(p)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	traffic, ok := sections[trafficSection]
	if !ok {
		t.Fatal("traffic_sources section missing")
	}
	want := []string{"minutes", "source", "views"}
	for i, h := range want {
		if traffic.Headers[i] != h {
			t.Fatalf("headers = %v, want %v", traffic.Headers, want)
		}
	}
	if traffic.Rows[0][0] != nil || traffic.Rows[0][1] != "search" {
		t.Fatalf("unexpected first row: %v", traffic.Rows[0])
	}
	if traffic.Rows[1][0] != 4.0 {
		t.Fatalf("unexpected second row: %v", traffic.Rows[1])
	}
}

func TestAudienceSectionsNoTraffic(t *testing.T) {
	sections := audienceSections(&model.Payload{})
	if len(sections) != 0 {
		t.Fatalf("expected no sections, got %v", sections)
	}
}
