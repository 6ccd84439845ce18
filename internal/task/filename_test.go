package task

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		wantBase   string
		wantStatus string
		wantErr    bool
	}{
		{name: "0001_write-tests_todo.md", wantBase: "0001_write-tests", wantStatus: "todo"},
		{name: "0012a_fix_the_bug_review.md", wantBase: "0012a_fix_the_bug", wantStatus: "review"},
		{name: "idea_something_backlog.md", wantBase: "idea_something", wantStatus: "backlog"},
		{name: "x_done.md", wantBase: "x", wantStatus: "done"},
		{name: "0001_write-tests_draft.md", wantErr: true},
		{name: "notes.md", wantErr: true},
		{name: "0001_write-tests_todo.txt", wantErr: true},
		{name: "0001_write-tests_TODO.md", wantErr: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			base, status, err := DecodeFilename(testCase.name)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidFilename) {
					t.Fatalf("DecodeFilename(%q) err=%v, want ErrInvalidFilename", testCase.name, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("DecodeFilename(%q) unexpected error: %v", testCase.name, err)
			}

			if base != testCase.wantBase || status != testCase.wantStatus {
				t.Errorf("DecodeFilename(%q) = (%q, %q), want (%q, %q)",
					testCase.name, base, status, testCase.wantBase, testCase.wantStatus)
			}

			if got := EncodeFilename(base, status); got != testCase.name {
				t.Errorf("EncodeFilename round trip = %q, want %q", got, testCase.name)
			}
		})
	}
}

func TestExtractID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		wantDigits string
		wantLetter string
	}{
		{"0001_write-tests_todo.md", "0001", ""},
		{"0012a_sub-task_todo.md", "0012", "a"},
		{"12ab_odd_todo.md", "12", ""},
		{"idea_something_backlog.md", "", ""},
		{"README.md", "", ""},
		{"", "", ""},
	}

	for _, testCase := range tests {
		digits, letter := ExtractID(testCase.name)
		if digits != testCase.wantDigits || letter != testCase.wantLetter {
			t.Errorf("ExtractID(%q) = (%q, %q), want (%q, %q)",
				testCase.name, digits, letter, testCase.wantDigits, testCase.wantLetter)
		}
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  string
	}{
		{"Write tests", "write-tests"},
		{"  Fix: the *bug*!  ", "fix-the-bug"},
		{"API v2 -- rollout", "api-v2-rollout"},
		{"夜更かし防止", "task"},
		{"", "task"},
		{"---", "task"},
	}

	for _, testCase := range tests {
		if got := Slugify(testCase.title); got != testCase.want {
			t.Errorf("Slugify(%q) = %q, want %q", testCase.title, got, testCase.want)
		}
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	t.Parallel()

	got := Slugify(strings.Repeat("ab ", 40))
	if len(got) > maxSlugLength {
		t.Fatalf("len(slug)=%d, want <= %d", len(got), maxSlugLength)
	}

	if strings.HasSuffix(got, "-") {
		t.Errorf("slug %q ends with a dash", got)
	}
}

func TestIsValidStatus(t *testing.T) {
	t.Parallel()

	for _, status := range Statuses {
		if !IsValidStatus(status) {
			t.Errorf("IsValidStatus(%q) = false", status)
		}
	}

	for _, status := range []string{"", "open", "Done", "in_progress"} {
		if IsValidStatus(status) {
			t.Errorf("IsValidStatus(%q) = true", status)
		}
	}
}
