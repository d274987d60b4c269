package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"downshot/pkg/logging"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Full Record",
			input: `time=2026-01-18T06:50:46.074+01:00 level=WARN msg="Vehicle link lost" component=vehicle retries="3 " reason=thisiswaytooLongtobedisplayed`,
			want:  "06:50:46 Vehicle link lost (component=vehicle, retries=3)",
		},
		{
			name:  "Journal Record Without Time",
			input: `level=ERROR msg="Mission failed" component=mission state=failed`,
			want:  "Mission failed (component=mission, state=failed)",
		},
		{
			name:  "Plain Report",
			input: "Mission state changed",
			want:  "Mission state changed",
		},
		{
			name:  "Report With Params But No Msg",
			input: "Mission state changed state=taking_off",
			want:  "Mission state changed state=taking_off",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}

func TestLogHandler(t *testing.T) {
	j := logging.NewJournal(10)
	h := NewLogHandler(j)
	mux := NewMux(Handlers{Log: h}, nil)

	j.Report("Mission state changed", "state", "validating")
	j.Report("Mission state changed", "state", "preparing_takeoff")
	j.Report("Mission state changed", "state", "taking_off")

	t.Run("List", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/log", http.NoBody))
		var resp struct {
			Lines []logging.Entry `json:"lines"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Lines) != 3 {
			t.Fatalf("expected 3 lines, got %d", len(resp.Lines))
		}
	})

	t.Run("Since", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/log?since=2", http.NoBody))
		var resp struct {
			Lines []logging.Entry `json:"lines"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Lines) != 1 || resp.Lines[0].Seq != 3 {
			t.Errorf("unexpected lines: %+v", resp.Lines)
		}
	})

	t.Run("BadSince", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/log?since=abc", http.NoBody))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("Latest", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/log/latest", http.NoBody))
		var resp map[string]string
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(resp["log"], "Mission state changed state=taking_off") {
			t.Errorf("unexpected latest line: %q", resp["log"])
		}
	})

	t.Run("Clear", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/log", http.NoBody))
		if w.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", w.Code)
		}
		if len(j.Lines()) != 0 {
			t.Error("journal should be empty after clear")
		}

		w = httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/log/latest", http.NoBody))
		var resp map[string]string
		_ = json.NewDecoder(w.Body).Decode(&resp)
		if resp["log"] != "" {
			t.Errorf("expected empty latest line, got %q", resp["log"])
		}
	})
}
