package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"downshot/pkg/logging"
)

// LogHandler serves the operator journal.
type LogHandler struct {
	journal *logging.Journal
}

func NewLogHandler(j *logging.Journal) *LogHandler {
	return &LogHandler{journal: j}
}

// HandleList returns the journal, oldest first. ?since=SEQ returns only
// newer lines so clients can poll incrementally.
func (h *LogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a sequence number")
			return
		}
		since = n
	}

	lines := []logging.Entry{}
	for _, e := range h.journal.Lines() {
		if e.Seq > since {
			lines = append(lines, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

// HandleLatest returns the most recent line, formatted for a status bar.
func (h *LogHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	formatted := ""
	if e, ok := h.journal.Last(); ok {
		formatted = e.Time.Format("15:04:05") + " " + formatLogLine(e.Message)
	}
	writeJSON(w, http.StatusOK, map[string]string{"log": formatted})
}

func (h *LogHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.journal.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// formatLogLine turns a captured slog text record into
// "Msg (key=value, ...)": time and level are dropped, the other params are
// sorted and values longer than 20 chars are omitted. Lines without a msg
// key are returned unchanged.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg string
	var timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
			continue
		case "level":
			continue
		case "msg":
			msg = val
			continue
		}

		if len(val) > 20 {
			continue
		}
		params = append(params, fmt.Sprintf("%s=%s", key, val))
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	output := msg
	if timeStr != "" {
		output = fmt.Sprintf("%s %s", timeStr, msg)
	}
	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(params, ", "))
	}
	return output
}
