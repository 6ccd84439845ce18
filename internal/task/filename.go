package task

import (
	"fmt"
	"slices"
	"strings"
)

// Status constants. The status of a task lives only in its filename suffix.
const (
	StatusBacklog = "backlog"
	StatusTodo    = "todo"
	StatusReview  = "review"
	StatusDone    = "done"
)

// Statuses lists every status in board order.
var Statuses = []string{StatusBacklog, StatusTodo, StatusReview, StatusDone}

const (
	mdExt         = ".md"
	maxSlugLength = 60
	defaultSlug   = "task"
)

// IsValidStatus reports whether s is one of [Statuses].
func IsValidStatus(s string) bool {
	return slices.Contains(Statuses, s)
}

// DecodeFilename splits name into the stable base and the status token.
//
//	DecodeFilename("0001_write-tests_todo.md") // "0001_write-tests", "todo"
func DecodeFilename(name string) (string, string, error) {
	stem, ok := strings.CutSuffix(name, mdExt)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidFilename, name)
	}

	idx := strings.LastIndexByte(stem, '_')
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidFilename, name)
	}

	base, status := stem[:idx], stem[idx+1:]
	if !IsValidStatus(status) {
		return "", "", fmt.Errorf("%w: unknown status %q in %s", ErrInvalidFilename, status, name)
	}

	return base, status, nil
}

// EncodeFilename is the inverse of [DecodeFilename].
func EncodeFilename(base, status string) string {
	return base + "_" + status + mdExt
}

// ExtractID reads the id from the portion of name before the first
// underscore: a run of digits, optionally followed by one lowercase letter.
// Names without leading digits yield an empty id.
func ExtractID(name string) (string, string) {
	prefix, _, _ := strings.Cut(name, "_")

	end := 0
	for end < len(prefix) && prefix[end] >= '0' && prefix[end] <= '9' {
		end++
	}

	if end == 0 {
		return "", ""
	}

	digits := prefix[:end]

	if end == len(prefix)-1 && prefix[end] >= 'a' && prefix[end] <= 'z' {
		return digits, prefix[end:]
	}

	return digits, ""
}

// Slugify derives a filesystem-safe slug from a title.
func Slugify(title string) string {
	var builder strings.Builder

	pendingDash := false

	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && builder.Len() > 0 {
				builder.WriteByte('-')
			}

			pendingDash = false

			builder.WriteRune(r)

			continue
		}

		pendingDash = true
	}

	slug := builder.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}

	if slug == "" {
		return defaultSlug
	}

	return slug
}

// PadID zero-pads a numeric id to four digits.
func PadID(n int) string {
	return fmt.Sprintf("%04d", n)
}
