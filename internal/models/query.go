package models

import (
	"sort"
	"strings"
)

// Query describes a filter over the store. Supplied criteria combine with
// logical AND; zero values mean "no constraint".
type Query struct {
	Text        string   `json:"text,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ModelFamily string   `json:"model_family,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Owner       string   `json:"owner,omitempty"`
}

// IsEmpty reports whether the query constrains nothing.
func (q Query) IsEmpty() bool {
	return q.Text == "" && len(q.Tags) == 0 && q.ModelFamily == "" &&
		q.Status == "" && q.Owner == ""
}

// Matches reports whether a template satisfies every supplied criterion.
// The keyword matches case-insensitively against the record's metadata and
// text blocks; the tag filter requires every requested tag to be present.
func (q Query) Matches(t *Template) bool {
	if q.Text != "" {
		blob := strings.ToLower(strings.Join([]string{
			t.Name,
			t.Description,
			t.UseCase,
			t.System,
			t.User,
			strings.Join(t.Tags, " "),
			t.Owner,
		}, " "))
		if !strings.Contains(blob, strings.ToLower(q.Text)) {
			return false
		}
	}

	for _, tag := range q.Tags {
		if !t.HasTag(tag) {
			return false
		}
	}

	if q.ModelFamily != "" && t.ModelFamily != q.ModelFamily {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Owner != "" && t.Owner != q.Owner {
		return false
	}

	return true
}

// SortByName orders templates by name, then id, for deterministic listings.
func SortByName(templates []*Template) {
	sort.SliceStable(templates, func(i, j int) bool {
		if templates[i].Name != templates[j].Name {
			return templates[i].Name < templates[j].Name
		}
		return templates[i].ID < templates[j].ID
	})
}
