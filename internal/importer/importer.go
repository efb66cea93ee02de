// Package importer turns uploaded CSV, JSON, and YAML payloads into typed
// template records ready to merge into the store.
//
// Rows degrade gracefully: a malformed field (an unparseable variables
// triple, an unknown status) skips that field's population and records a
// row-level warning instead of aborting the batch. Merging by slugified id
// is performed by the service layer; this package only parses and
// normalizes.
package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dpshade/prompt-catalog/internal/models"
)

// Format identifies a supported import payload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat maps a file name to its import format.
func DetectFormat(filename string) (Format, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON, nil
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported import format for %q (expected .csv, .json, .yaml or .yml)", filename)
}

// Warning describes a non-fatal problem with one imported row.
type Warning struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Field != "" {
		return fmt.Sprintf("row %d, field %s: %s", w.Row, w.Field, w.Message)
	}
	return fmt.Sprintf("row %d: %s", w.Row, w.Message)
}

// Result summarizes one import batch after merging.
type Result struct {
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Warnings    []Warning `json:"warnings,omitempty"`
	ArchivePath string    `json:"archive_path,omitempty"`
}

// Wrapper text used to synthesize a structured system/user pair from a
// free-form prompt column. Deterministic text transformation, not a
// generative step.
const (
	wrapperSystem = "You are a thoughtful AI assistant. Analyse each request carefully, clarify assumptions, " +
		"and provide precise, actionable answers. When data is missing, outline how it could be " +
		"obtained and be transparent about limitations."

	wrapperUserPrefix = "Follow this workflow before answering:\n" +
		"1. Note any missing context or assumptions you must make.\n" +
		"2. Think through the request step by step and surface key metrics or considerations.\n" +
		"3. Present the final answer with a concise summary and, when relevant, bullet points for key numbers.\n\n" +
		"User request: "
)

// WrapRawPrompt generates a structured system/user pair from free-form
// prompt text. An empty prompt yields empty blocks.
func WrapRawPrompt(raw string) (system, user string) {
	prompt := strings.TrimSpace(raw)
	if prompt == "" {
		return "", ""
	}
	return wrapperSystem, wrapperUserPrefix + prompt
}

// rawRecord is the loosely-typed row shape shared by all three formats.
// JSON and YAML payloads decode straight into it; CSV rows are mapped into
// it column by column.
type rawRecord struct {
	models.Template `yaml:",inline"`

	Prompt             string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	RawPrompt          string `json:"raw_prompt,omitempty" yaml:"raw_prompt,omitempty"`
	Text               string `json:"text,omitempty" yaml:"text,omitempty"`
	EvaluationCriteria string `json:"evaluation_criteria,omitempty" yaml:"evaluation_criteria,omitempty"`
}

// Importer parses import payloads into typed template records. The running
// counter names rows that arrive without a name.
type Importer struct {
	counter int
}

// New creates a new importer
func New() *Importer {
	return &Importer{}
}

// Parse converts a payload in the given format into normalized template
// records. Row-level problems are reported as warnings; only a payload that
// cannot be parsed at all is an error.
func (imp *Importer) Parse(data []byte, format Format) ([]*models.Template, []Warning, error) {
	switch format {
	case FormatCSV:
		return imp.parseCSV(data)
	case FormatJSON:
		return imp.parseJSON(data)
	case FormatYAML:
		return imp.parseYAML(data)
	}
	return nil, nil, fmt.Errorf("unsupported import format %q", format)
}

// parseCSV reads a header row plus data rows. Fully blank rows are skipped.
func (imp *Importer) parseCSV(data []byte) ([]*models.Template, []Warning, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("CSV file must include a header row")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
	}

	var templates []*models.Template
	var warnings []Warning
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			warnings = append(warnings, Warning{Row: rowNum, Message: fmt.Sprintf("skipped malformed CSV row: %v", err)})
			continue
		}

		row := make(map[string]string, len(columns))
		blank := true
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			value = strings.TrimSpace(value)
			row[columns[i]] = value
			if value != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		raw, rowWarnings := imp.rawFromCSVRow(row, rowNum)
		warnings = append(warnings, rowWarnings...)

		t, normWarnings := imp.normalize(raw, rowNum)
		warnings = append(warnings, normWarnings...)
		templates = append(templates, t)
	}

	return templates, warnings, nil
}

// rawFromCSVRow maps one CSV row into the shared raw shape, applying the
// CSV-specific column defaults.
func (imp *Importer) rawFromCSVRow(row map[string]string, rowNum int) (rawRecord, []Warning) {
	var warnings []Warning

	raw := rawRecord{}
	raw.Name = firstNonEmpty(row["name"], row["title"])
	raw.Description = withDefault(row["description"], "Imported from CSV")
	raw.UseCase = withDefault(row["use_case"], "General analysis")
	raw.Audience = withDefault(row["audience"], "Business stakeholders")
	raw.Tone = withDefault(row["tone"], "Analytical and clear")
	raw.ModelFamily = withDefault(row["model_family"], "OpenAI")
	raw.Owner = withDefault(row["owner"], "csv-import")
	raw.Status = models.Status(row["status"])
	raw.System = row["system"]
	raw.User = row["user"]
	raw.Tools = row["tools"]
	raw.Tags = splitCommaList(row["tags"])
	raw.EvaluationCriteria = firstNonEmpty(row["evaluation"], row["evaluation_criteria"])
	raw.References = splitLines(row["references"])
	raw.Safety.Do = splitLines(row["safety_do"])
	raw.Safety.Dont = splitLines(row["safety_dont"])
	raw.Prompt = firstNonEmpty(row["prompt"], row["raw_prompt"], row["text"])

	if spec := row["variables"]; spec != "" {
		variables, varWarnings := ParseVariableSpec(spec, rowNum)
		raw.Variables = variables
		warnings = append(warnings, varWarnings...)
	}

	return raw, warnings
}

// parseJSON accepts either a {"templates": [...]} envelope or a bare array
// of record-shaped objects.
func (imp *Importer) parseJSON(data []byte) ([]*models.Template, []Warning, error) {
	var envelope struct {
		Templates []rawRecord `json:"templates"`
	}
	var records []rawRecord
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Templates != nil {
		records = envelope.Templates
	} else {
		var bare []rawRecord
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			return nil, nil, fmt.Errorf("invalid structure: expected an object with a 'templates' array or a bare array")
		}
		records = bare
	}

	return imp.normalizeAll(records)
}

// parseYAML accepts the same shapes as parseJSON.
func (imp *Importer) parseYAML(data []byte) ([]*models.Template, []Warning, error) {
	var envelope struct {
		Templates []rawRecord `yaml:"templates"`
	}
	var records []rawRecord
	if err := yaml.Unmarshal(data, &envelope); err == nil && envelope.Templates != nil {
		records = envelope.Templates
	} else {
		var bare []rawRecord
		if bareErr := yaml.Unmarshal(data, &bare); bareErr != nil {
			return nil, nil, fmt.Errorf("invalid structure: expected an object with a 'templates' array or a bare array")
		}
		records = bare
	}

	return imp.normalizeAll(records)
}

func (imp *Importer) normalizeAll(records []rawRecord) ([]*models.Template, []Warning, error) {
	var templates []*models.Template
	var warnings []Warning
	for i, raw := range records {
		t, rowWarnings := imp.normalize(raw, i+1)
		warnings = append(warnings, rowWarnings...)
		templates = append(templates, t)
	}
	return templates, warnings, nil
}

// normalize turns one raw row into a typed record: name defaulting, slug id,
// status normalization, tag defaulting, and raw-prompt synthesis.
func (imp *Importer) normalize(raw rawRecord, rowNum int) (*models.Template, []Warning) {
	var warnings []Warning

	t := raw.Template.Clone()

	if t.Name == "" {
		imp.counter++
		t.Name = fmt.Sprintf("Imported Prompt %d", imp.counter)
	}
	t.ID = models.Slugify(t.Name)

	if t.Status == "" {
		t.Status = models.StatusDraft
	} else if !t.Status.Valid() {
		warnings = append(warnings, Warning{
			Row:     rowNum,
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q, using %q", t.Status, models.StatusDraft),
		})
		t.Status = models.StatusDraft
	}

	if len(t.Tags) == 0 {
		t.Tags = []string{"imported"}
	}

	if t.Evaluation == "" {
		t.Evaluation = raw.EvaluationCriteria
	}

	// Synthesize a structured pair when both blocks are blank and a raw
	// prompt column is present. A partially filled pair is completed from
	// whichever block carries the text.
	if t.System == "" || t.User == "" {
		source := firstNonEmpty(raw.Prompt, raw.RawPrompt, raw.Text, t.User)
		genSystem, genUser := WrapRawPrompt(source)
		if t.System == "" {
			t.System = genSystem
		}
		if t.User == "" {
			t.User = genUser
		}
	}

	return t, warnings
}

// ParseVariableSpec parses the compact CSV variables column: semicolon
// separated name:description:default triples. Chunks without a name are
// skipped with a warning.
func ParseVariableSpec(spec string, rowNum int) ([]models.Variable, []Warning) {
	var variables []models.Variable
	var warnings []Warning

	for _, chunk := range strings.Split(spec, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		parts := strings.Split(chunk, ":")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			warnings = append(warnings, Warning{
				Row:     rowNum,
				Field:   "variables",
				Message: fmt.Sprintf("skipped variable triple %q: missing name", chunk),
			})
			continue
		}

		v := models.Variable{Name: name}
		if len(parts) > 1 {
			v.Description = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			v.Default = strings.TrimSpace(strings.Join(parts[2:], ":"))
		}
		variables = append(variables, v)
	}

	return variables, warnings
}

// Helpers

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func splitCommaList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func splitLines(value string) []string {
	if value == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(value, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
