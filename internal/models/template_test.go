package models

import (
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Launch Email":        "launch-email",
		"Launch  Email!!":     "launch-email",
		"  Spaced Out  ":      "spaced-out",
		"Already-Slugged":     "already-slugged",
		"Q3 Revenue (Report)": "q3-revenue-report",
	}

	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	for _, name := range []string{"Launch Email", "weird -- name", "Copy (2)"} {
		once := Slugify(name)
		if twice := Slugify(once); twice != once {
			t.Errorf("Slugify not idempotent for %q: %q -> %q", name, once, twice)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := &Template{
		Name:      "Test",
		Tags:      []string{"a", "b"},
		Variables: []Variable{{Name: "x"}},
	}

	clone := original.Clone()
	clone.Tags[0] = "changed"
	clone.Variables[0].Name = "y"

	if original.Tags[0] != "a" {
		t.Error("Clone shares tag slice with original")
	}
	if original.Variables[0].Name != "x" {
		t.Error("Clone shares variable slice with original")
	}
}

func TestHasTag(t *testing.T) {
	tmpl := &Template{Tags: []string{"Email", "launch"}}

	if !tmpl.HasTag("email") {
		t.Error("expected case-insensitive tag match")
	}
	if tmpl.HasTag("missing") {
		t.Error("unexpected tag match")
	}
}

func TestMergeOverlaysPresentFields(t *testing.T) {
	existing := &Template{
		ID:          "launch-email",
		Name:        "Launch Email",
		Description: "Original description",
		Owner:       "alice",
		Tags:        []string{"email"},
		System:      "original system",
	}

	overlay := &Template{
		Name:        "Launch Email",
		Description: "New description",
		Tags:        []string{"email", "launch"},
	}

	existing.Merge(overlay)

	if existing.Description != "New description" {
		t.Errorf("description not overwritten: %q", existing.Description)
	}
	if existing.Owner != "alice" {
		t.Errorf("blank overlay field should preserve existing owner, got %q", existing.Owner)
	}
	if existing.System != "original system" {
		t.Errorf("blank overlay field should preserve existing system, got %q", existing.System)
	}
	if len(existing.Tags) != 2 {
		t.Errorf("tags not replaced, got %v", existing.Tags)
	}
	if existing.ID != "launch-email" {
		t.Errorf("merge must not touch the id, got %q", existing.ID)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusApproved, StatusDeprecated} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Status("published").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if Status("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestQueryMatches(t *testing.T) {
	tmpl := &Template{
		Name:        "Launch Email",
		Description: "Announce product launches",
		Tags:        []string{"email", "launch"},
		ModelFamily: "OpenAI",
		Status:      StatusApproved,
		Owner:       "alice",
	}

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"empty query matches", Query{}, true},
		{"keyword in name", Query{Text: "launch"}, true},
		{"keyword case-insensitive", Query{Text: "ANNOUNCE"}, true},
		{"keyword miss", Query{Text: "newsletter"}, false},
		{"tag subset", Query{Tags: []string{"email"}}, true},
		{"all tags required", Query{Tags: []string{"email", "missing"}}, false},
		{"status match", Query{Status: StatusApproved}, true},
		{"status mismatch", Query{Status: StatusDraft}, false},
		{"combined and", Query{Text: "launch", Tags: []string{"email"}, Owner: "alice"}, true},
		{"combined and one fails", Query{Text: "launch", Owner: "bob"}, false},
	}

	for _, tc := range tests {
		if got := tc.query.Matches(tmpl); got != tc.want {
			t.Errorf("%s: Matches = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSortByNameStable(t *testing.T) {
	templates := []*Template{
		{ID: "b", Name: "Zeta"},
		{ID: "a", Name: "Alpha"},
		{ID: "c", Name: "Alpha"},
	}

	SortByName(templates)

	if templates[0].Name != "Alpha" || templates[0].ID != "a" {
		t.Errorf("unexpected first element: %+v", templates[0])
	}
	if templates[1].ID != "c" {
		t.Errorf("ties should break by id, got %q", templates[1].ID)
	}
	if templates[2].Name != "Zeta" {
		t.Errorf("unexpected last element: %+v", templates[2])
	}
}
