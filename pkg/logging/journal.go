package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Entry is one operator-facing journal line.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Journal is a bounded, clearable log of operator-facing lines. It receives
// mission reports directly and, through Init, warnings from the server log.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	start   int
	count   int
	seq     uint64
	now     func() time.Time
}

// NewJournal creates a journal that keeps the last size lines.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = 1
	}
	return &Journal{
		entries: make([]Entry, size),
		now:     time.Now,
	}
}

// Report appends msg followed by its key/value args.
func (j *Journal) Report(msg string, args ...any) {
	j.add(formatLine(msg, args))
}

// Write implements io.Writer so the journal can back a slog handler.
// Each call is one record.
func (j *Journal) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		j.add(line)
	}
	return len(p), nil
}

func (j *Journal) add(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	e := Entry{Seq: j.seq, Time: j.now(), Message: line}
	size := len(j.entries)
	if j.count < size {
		j.entries[(j.start+j.count)%size] = e
		j.count++
		return
	}
	j.entries[j.start] = e
	j.start = (j.start + 1) % size
}

// Lines returns the retained lines, oldest first.
func (j *Journal) Lines() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]Entry, j.count)
	for i := 0; i < j.count; i++ {
		out[i] = j.entries[(j.start+i)%len(j.entries)]
	}
	return out
}

// Last returns the most recent line.
func (j *Journal) Last() (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.count == 0 {
		return Entry{}, false
	}
	return j.entries[(j.start+j.count-1)%len(j.entries)], true
}

// Clear drops every line. Sequence numbers keep increasing.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.start = 0
	j.count = 0
	clear(j.entries)
}

func formatLine(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " %v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
