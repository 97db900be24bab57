// Package grade normalizes free-text grade labels and decides grade-group visibility.
package grade

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ordinalRegex = regexp.MustCompile(`^(\d{1,2})(st|nd|rd|th)?(\s+grade)?$`)
	spacesRegex  = regexp.MustCompile(`\s+`)

	// labels allowed when storing grade-group grades, keyed by their lowercase form
	validLabels = func() map[string]string {
		labels := []string{"Pre-K", "Kindergarten"}
		for n := 1; n <= 12; n++ {
			labels = append(labels, Ordinal(n)+" Grade", Ordinal(n))
		}
		m := make(map[string]string, len(labels))
		for _, l := range labels {
			m[strings.ToLower(l)] = l
		}
		return m
	}()
)

// Ordinal returns n with its English ordinal suffix (1st, 2nd, 11th, 23rd...).
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// Normalize returns the comparable form of a grade label:
// trimmed, lowercased, inner whitespace collapsed and numeric grades unified,
// so "10", "10th", "10th Grade" and " 10TH  grade " all become "10th grade".
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = spacesRegex.ReplaceAllString(s, " ")
	if m := ordinalRegex.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Ordinal(n) + " grade"
	}
	return s
}

// Split splits a comma-separated grades list, dropping blank entries.
func Split(grades string) []string {
	parts := strings.Split(grades, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MatchesTeacherGrade reports whether a grade group with the given `grades` list is visible to a teacher of `teacherGrade`.
// Groups without grades are open to every teacher, including teachers without a grade.
func MatchesTeacherGrade(grades, teacherGrade string) bool {
	list := Split(grades)
	if len(list) == 0 {
		return true
	}
	want := Normalize(teacherGrade)
	if want == "" {
		return false
	}
	for _, g := range list {
		if Normalize(g) == want {
			return true
		}
	}
	return false
}

// ClassMembershipVisible reports whether classID is a declared member of a grade group.
func ClassMembershipVisible(memberClassIDs []string, classID string) bool {
	if classID == "" {
		return false
	}
	for _, id := range memberClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// Label returns the canonical display label for s ("5" -> "5th Grade", "kindergarten" -> "Kindergarten").
// ok is false when s is not an allowed grade.
func Label(s string) (label string, ok bool) {
	t := strings.TrimSpace(s)
	if l, found := validLabels[strings.ToLower(t)]; found {
		return l, true
	}
	n, err := strconv.Atoi(t)
	if err != nil || n < 1 || n > 12 {
		return "", false
	}
	return Ordinal(n) + " Grade", true
}

// JoinLabels keeps the allowed grades of `grades` as canonical labels and joins them with commas.
// The result is empty when nothing valid remains.
func JoinLabels(grades []string) string {
	labels := make([]string, 0, len(grades))
	seen := make(map[string]bool, len(grades))
	for _, g := range grades {
		if l, ok := Label(g); ok && !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	return strings.Join(labels, ",")
}
