// Package display shortens questions and answers for buttons and the history table.
package display

import (
	"github.com/myrjola/fsvalidator/internal/ai"
	"github.com/myrjola/fsvalidator/internal/workflow"
)

const (
	QuestionCap = 50
	AnswerCap   = 100
)

const timestampLayout = "2006-01-02 15:04:05"

// Shorten returns s unchanged if it has at most k characters and otherwise its first k characters followed by "...".
func Shorten(s string, k int) string {
	if prefix := ai.Truncate(s, k); len(prefix) < len(s) {
		return prefix + "..."
	}
	return s
}

// Entry is a row in the table of previous analyses.
type Entry struct {
	ID        string
	Timestamp string
	Question  string
	Answer    string
	Document  string
	Failed    bool
}

// PriorEntries lists every record in history except the one with currentID, oldest first.
func PriorEntries(history []workflow.Record, currentID string) []Entry {
	entries := make([]Entry, 0, len(history))
	for _, record := range history {
		if currentID != "" && record.ID == currentID {
			continue
		}
		entries = append(entries, Entry{
			ID:        record.ID,
			Timestamp: record.CreatedAt.Format(timestampLayout),
			Question:  Shorten(record.Question, QuestionCap),
			Answer:    Shorten(record.Text(), AnswerCap),
			Document:  record.DocumentName,
			Failed:    record.Failed(),
		})
	}
	return entries
}
