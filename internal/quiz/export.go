package quiz

import (
	"fmt"
	"strings"
	"time"
)

const csvHeader = "Question #,Question Text,Username,MCQ Answer,Explanation"

// ExportCSV renders the session's questions and answer records as a CSV
// payload plus a download filename stamped with the export time.
//
// One row per (question, answer slot) pair in question then slot insertion
// order. Text fields are double-quoted with internal quotes doubled; an
// unanswered MCQ and an empty explanation render as empty quoted strings.
// Questions nobody had a slot for produce no rows, so the export reflects
// the lazy-slot model directly.
func ExportCSV(s *Session, now time.Time) (csv, filename string) {
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')

	for _, q := range s.Export() {
		for _, rec := range q.Answers {
			mcq := ""
			if rec.MCQ != nil {
				mcq = fmt.Sprintf("%d", *rec.MCQ)
			}
			fmt.Fprintf(&b, "%d,%s,%s,%s,%s\n",
				q.Number,
				quote(q.Text),
				quote(rec.Username),
				quote(mcq),
				quote(rec.Explanation),
			)
		}
	}

	filename = fmt.Sprintf("quiz_data_%s_%s.csv", s.Code, now.Format("20060102-150405"))
	return b.String(), filename
}

// quote wraps a field in double quotes, doubling internal quotes.
func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
