package regen

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/stopmidnight/taskboard/internal/task"
)

var indexHeadingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

var statusSections = []struct {
	status string
	title  string
}{
	{task.StatusBacklog, "📑 BACKLOG"},
	{task.StatusTodo, "📝 TODO"},
	{task.StatusReview, "🔍 REVIEW"},
	{task.StatusDone, "✅ DONE"},
}

var categorySections = []struct {
	prefix string
	title  string
}{
	{"idea", "💡 IDEAS"},
	{"impl", "🔧 IMPLEMENTATIONS"},
	{"play", "🎮 PLAY FEEDBACK"},
	{"note", "📄 NOTES"},
}

// indexZone is the zone of the INDEX.md timestamp. Hosts without tzdata
// get a fixed +09:00 zone.
var indexZone = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}

	return loc
}()

// RenderIndex builds INDEX.md from the task files. read returns the
// content of a file; files it fails on are listed without a heading.
func RenderIndex(names []string, read func(string) (string, error), now time.Time) string {
	files := make([]string, 0, len(names))

	for _, name := range names {
		if indexable(name) && !strings.HasPrefix(name, "000_") {
			files = append(files, name)
		}
	}

	slices.Sort(files)

	var b strings.Builder

	fmt.Fprintf(&b, "# Logs INDEX\n*自動生成: %s*\n\n", now.In(indexZone).Format("2006/1/2 15:04:05"))
	b.WriteString("## 📊 サマリー\n")

	for _, sec := range statusSections {
		fmt.Fprintf(&b, "- %s: %d件\n", strings.ToUpper(sec.status), len(withStatus(files, sec.status)))
	}

	fmt.Fprintf(&b, "- 合計: %d件\n\n", len(files))

	for _, sec := range statusSections {
		matched := withStatus(files, sec.status)
		if len(matched) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s (%d)\n\n", sec.title, len(matched))

		for _, name := range matched {
			content, err := read(name)
			if err != nil {
				fmt.Fprintf(&b, "- [%s](./tasks/%s)\n", strings.ReplaceAll(name, "_", " "), name)

				continue
			}

			title := strings.Replace(strings.ReplaceAll(name, "_", " "), ".md", "", 1)
			if m := indexHeadingRe.FindStringSubmatch(content); m != nil {
				title = strings.TrimRight(m[1], "\r")
			}

			fmt.Fprintf(&b, "- **%s** - [%s](./tasks/%s)\n", title, name, name)
		}

		b.WriteString("\n")
	}

	for _, cat := range categorySections {
		var matched []string

		for _, name := range files {
			if strings.HasPrefix(name, cat.prefix+"_") {
				matched = append(matched, name)
			}
		}

		if len(matched) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s (%d)\n\n", cat.title, len(matched))

		for _, status := range task.Statuses {
			inStatus := withStatus(matched, status)
			if len(inStatus) == 0 {
				continue
			}

			fmt.Fprintf(&b, "### %s (%d)\n", strings.ToUpper(status), len(inStatus))

			for _, name := range inStatus {
				label := strings.Replace(strings.ReplaceAll(name, "_", " "), ".md", "", 1)
				fmt.Fprintf(&b, "- [%s](./tasks/%s)\n", label, name)
			}

			b.WriteString("\n")
		}
	}

	return b.String()
}

func withStatus(files []string, status string) []string {
	var out []string

	for _, name := range files {
		if strings.HasSuffix(name, "_"+status+".md") {
			out = append(out, name)
		}
	}

	return out
}

func (g *Generator) writeIndex(names []string) error {
	return g.writeFile("INDEX.md", []byte(RenderIndex(names, g.readTask, g.now())))
}
