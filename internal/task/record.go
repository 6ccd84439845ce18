package task

import (
	"regexp"
	"strings"
	"time"
)

// Record is the structured form of a task file.
//
//	# {id}: {title}
//
//	{Meta...}
//	Edited-By: {author} {date}
//
//	{body}
//
//	---
//	Change Log
//	- {date} {author}: {description}
type Record struct {
	ID        string
	Title     string
	Meta      []string
	Body      string
	ChangeLog []string
}

const (
	changeLogDelimiter = "---"
	changeLogHeader    = "Change Log"
	editedByPrefix     = "Edited-By:"

	// DateLayout formats change log and Edited-By dates.
	DateLayout = "2006-01-02"
)

// Change log descriptions written by the board.
const (
	DescCreated = "作成"
	DescEdited  = "本文を更新"
)

var (
	headingRe = regexp.MustCompile(`^#\s*(.+)$`)
	idTitleRe = regexp.MustCompile(`^([0-9]+[a-z]?):\s*(.*)$`)
	metaRe    = regexp.MustCompile(`^[A-Za-z0-9_-]+:\s`)
)

// DescStatus describes a status transition in the change log.
func DescStatus(from, to string) string {
	return "ステータス " + from + " → " + to
}

// ChangeEntry formats a single change log line.
func ChangeEntry(date, author, description string) string {
	return "- " + date + " " + author + ": " + description
}

// EditedBy formats the value of the Edited-By metadata line.
func EditedBy(author string, now time.Time) string {
	return author + " " + now.UTC().Format(DateLayout)
}

// Parse splits task file content into its sections. It never fails: content
// that does not follow the layout degrades into an empty heading or a body
// without a change log.
func Parse(content string) Record {
	lines := strings.Split(content, "\n")

	var rec Record

	if m := headingRe.FindStringSubmatch(lines[0]); m != nil {
		raw := strings.TrimSpace(m[1])
		rec.Title = raw

		if idm := idTitleRe.FindStringSubmatch(raw); idm != nil {
			rec.ID = idm[1]
			rec.Title = strings.TrimSpace(idm[2])
		}
	}

	idx := skipBlank(lines, 1)

	metaStart := idx
	for idx < len(lines) && metaRe.MatchString(lines[idx]) {
		idx++
	}

	if idx > metaStart {
		rec.Meta = append([]string(nil), lines[metaStart:idx]...)
	}

	bodyStart := skipBlank(lines, idx)

	logStart := len(lines)

	for i := bodyStart; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == changeLogDelimiter {
			logStart = i

			break
		}
	}

	rec.Body = strings.TrimRight(strings.Join(lines[bodyStart:logStart], "\n"), " \t\r\n")

	logLines := lines[logStart:]
	for len(logLines) > 0 && isBlank(logLines[len(logLines)-1]) {
		logLines = logLines[:len(logLines)-1]
	}

	if len(logLines) > 0 {
		rec.ChangeLog = append([]string(nil), logLines...)
	}

	return rec
}

// Serialize renders the record. Any prior Edited-By line is replaced by one
// for editedBy, and entry (when non-empty) is appended to the change log.
// Serializing a parsed record again with the same editedBy and no entry
// yields identical bytes.
func (r Record) Serialize(editedBy, entry string) string {
	lines := make([]string, 0, len(r.Meta)+len(r.ChangeLog)+8)

	if r.ID != "" {
		lines = append(lines, "# "+r.ID+": "+r.Title)
	} else {
		lines = append(lines, "# "+r.Title)
	}

	lines = append(lines, "")

	for _, line := range r.Meta {
		if strings.HasPrefix(line, editedByPrefix) {
			continue
		}

		lines = append(lines, line)
	}

	lines = append(lines, editedByPrefix+" "+editedBy, "")

	if body := strings.TrimRight(r.Body, " \t\r\n"); body != "" {
		lines = append(lines, body, "")
	}

	lines = append(lines, normalizeChangeLog(r.ChangeLog)...)

	if entry != "" {
		lines = append(lines, entry)
	}

	// Body lines are split again so that blank runs inside the body collapse too.
	out := collapseBlankRuns(strings.Split(strings.Join(lines, "\n"), "\n"))

	for len(out) > 0 && isBlank(out[len(out)-1]) {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n") + "\n"
}

// normalizeChangeLog makes the log start with "---" and "Change Log",
// respelling a header that differs only in case. Entries and the blank
// lines between them are kept as written.
func normalizeChangeLog(changeLog []string) []string {
	rest := changeLog

	if len(rest) > 0 && strings.TrimSpace(rest[0]) == changeLogDelimiter {
		rest = rest[1:]
	}

	if len(rest) > 0 && strings.EqualFold(strings.TrimSpace(rest[0]), changeLogHeader) {
		rest = rest[1:]
	}

	return append([]string{changeLogDelimiter, changeLogHeader}, rest...)
}

func collapseBlankRuns(lines []string) []string {
	out := make([]string, 0, len(lines))

	prevBlank := false

	for _, line := range lines {
		blank := isBlank(line)
		if blank && prevBlank {
			continue
		}

		if blank {
			line = ""
		}

		out = append(out, line)
		prevBlank = blank
	}

	return out
}

func skipBlank(lines []string, idx int) int {
	for idx < len(lines) && isBlank(lines[idx]) {
		idx++
	}

	return idx
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
