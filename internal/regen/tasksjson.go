package regen

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/stopmidnight/taskboard/internal/task"
)

// Summary is one element of tasks.json.
type Summary struct {
	ID       string   `json:"id"`
	IDRaw    string   `json:"idRaw"`
	Aliases  []string `json:"aliases"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Filename string   `json:"filename"`
}

var (
	statusSuffixRe = regexp.MustCompile(`_([^_]+)\.md$`)
	titlePrefixRes = []*regexp.Regexp{
		regexp.MustCompile(`^タスク\d+:\s*`),
		regexp.MustCompile(`^(TODO|REVIEW|DONE|BACKLOG)\s+\d+:\s*`),
		regexp.MustCompile(`^\d+:\s*`),
	}
	nonDigitRe = regexp.MustCompile(`\D`)
)

// Summarize derives the tasks.json entry for one file.
func Summarize(filename, content string) Summary {
	digits, letter := task.ExtractID(filename)

	status := ""
	if m := statusSuffixRe.FindStringSubmatch(filename); m != nil {
		status = m[1]
	}

	s := Summary{
		Aliases:  []string{},
		Title:    summaryTitle(filename, content),
		Status:   status,
		Filename: filename,
	}

	if digits != "" {
		n, _ := strconv.Atoi(digits)
		s.IDRaw = strconv.Itoa(n)
		s.ID = padDigits(digits) + letter
	}

	if s.ID != "" && s.IDRaw != "" && s.ID != s.IDRaw {
		s.Aliases = append(s.Aliases, s.IDRaw)
	}

	return s
}

func padDigits(digits string) string {
	if len(digits) >= 4 {
		return digits
	}

	return strings.Repeat("0", 4-len(digits)) + digits
}

func summaryTitle(filename, content string) string {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "# ") {
			continue
		}

		title := strings.TrimLeft(strings.TrimPrefix(line, "#"), " \t")
		for _, re := range titlePrefixRes {
			title = re.ReplaceAllString(title, "")
		}

		return strings.TrimSpace(title)
	}

	title := strings.Replace(filename, ".md", "", 1)
	if idx := strings.LastIndexByte(title, '_'); idx >= 0 {
		title = title[:idx]
	}

	digits, _ := task.ExtractID(title)
	if digits != "" && strings.HasPrefix(title, digits+"_") {
		title = title[len(digits)+1:]
	}

	return title
}

func numericID(id string) int {
	n, _ := strconv.Atoi(nonDigitRe.ReplaceAllString(id, ""))

	return n
}

func (g *Generator) writeTasksJSON(names []string) error {
	summaries := make([]Summary, 0, len(names))

	for _, name := range names {
		content, err := g.readTask(name)
		if err != nil {
			return err
		}

		summaries = append(summaries, Summarize(name, content))
	}

	slices.SortStableFunc(summaries, func(a, b Summary) int {
		return numericID(a.ID) - numericID(b.ID)
	})

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return err
	}

	if err := g.writeFile("tasks.json", data); err != nil {
		return err
	}

	return g.writeFile(filepath.Join("viewer", "tasks.json"), data)
}
