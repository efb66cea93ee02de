// Package cli implements the headless command-line interface. Every
// command goes through the same Service layer as the HTTP API, so the
// two surfaces always agree on behavior.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dpshade/prompt-catalog/internal/clipboard"
	"github.com/dpshade/prompt-catalog/internal/importer"
	"github.com/dpshade/prompt-catalog/internal/models"
	"github.com/dpshade/prompt-catalog/internal/renderer"
	"github.com/dpshade/prompt-catalog/internal/service"
)

// CLI provides headless command-line interface functionality
type CLI struct {
	service *service.Service
}

// NewCLI creates a new CLI instance
func NewCLI(svc *service.Service) *CLI {
	return &CLI{service: svc}
}

// ExecuteCommand processes a CLI command and returns the result
func (c *CLI) ExecuteCommand(args []string) error {
	if len(args) == 0 {
		return c.printUsage()
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "list", "ls":
		return c.listTemplates(commandArgs)
	case "search":
		return c.searchTemplates(commandArgs)
	case "get", "show":
		return c.showTemplate(commandArgs)
	case "create", "new":
		return c.createTemplate(commandArgs)
	case "edit":
		return c.editTemplate(commandArgs)
	case "delete", "rm":
		return c.deleteTemplate(commandArgs)
	case "duplicate":
		return c.duplicateTemplate(commandArgs)
	case "render":
		return c.renderTemplate(commandArgs)
	case "import":
		return c.importTemplates(commandArgs)
	case "export":
		return c.exportTemplates(commandArgs)
	case "tags":
		return c.listTags(commandArgs)
	case "versions":
		return c.handleVersions(commandArgs)
	case "help":
		return c.printUsage()
	default:
		return fmt.Errorf("unknown command: %s (try 'help')", command)
	}
}

// listTemplates lists templates, optionally filtered
func (c *CLI) listTemplates(args []string) error {
	var format string
	var query models.Query

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--format", "-f":
			if i+1 < len(args) {
				format = args[i+1]
				i++
			}
		case "--tag", "-t":
			if i+1 < len(args) {
				query.Tags = append(query.Tags, args[i+1])
				i++
			}
		case "--status":
			if i+1 < len(args) {
				query.Status = models.Status(args[i+1])
				i++
			}
		case "--model-family":
			if i+1 < len(args) {
				query.ModelFamily = args[i+1]
				i++
			}
		case "--owner":
			if i+1 < len(args) {
				query.Owner = args[i+1]
				i++
			}
		}
	}

	if query.Status != "" && !query.Status.Valid() {
		return fmt.Errorf("unknown status: %s", query.Status)
	}

	templates, err := c.service.FilterTemplates(query)
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	return c.formatOutput(templates, format)
}

// searchTemplates runs a fuzzy search over the catalog
func (c *CLI) searchTemplates(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("search requires a query")
	}

	var format string
	var terms []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--format", "-f":
			if i+1 < len(args) {
				format = args[i+1]
				i++
			}
		default:
			terms = append(terms, args[i])
		}
	}

	query := strings.Join(terms, " ")
	if query == "" {
		return fmt.Errorf("search requires a query")
	}

	templates, err := c.service.SearchTemplates(query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return c.formatOutput(templates, format)
}

// showTemplate displays a specific template
func (c *CLI) showTemplate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("show requires a template ID")
	}

	id := args[0]
	var format string
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--format", "-f":
			if i+1 < len(args) {
				format = args[i+1]
				i++
			}
		}
	}

	t, err := c.service.GetTemplate(id)
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}

	return c.formatSingleTemplate(t, format)
}

// templateFlags applies field flags shared by create and edit onto t.
// Returns the number of flags consumed starting at args[i], or 0 when
// args[i] is not a recognized flag.
func templateFlags(t *models.Template, args []string, i int) int {
	flag := args[i]
	if i+1 >= len(args) {
		return 0
	}
	value := args[i+1]

	switch flag {
	case "--description":
		t.Description = value
	case "--use-case":
		t.UseCase = value
	case "--audience":
		t.Audience = value
	case "--tone":
		t.Tone = value
	case "--model-family":
		t.ModelFamily = value
	case "--status":
		t.Status = models.Status(value)
	case "--owner":
		t.Owner = value
	case "--system":
		t.System = value
	case "--user":
		t.User = value
	case "--tools":
		t.Tools = value
	case "--tags":
		t.Tags = splitList(value)
	case "--var":
		v, err := parseVariableFlag(value)
		if err != nil {
			return 0
		}
		t.Variables = append(t.Variables, v)
	default:
		return 0
	}
	return 2
}

// parseVariableFlag parses name[:description[:default]]
func parseVariableFlag(spec string) (models.Variable, error) {
	parts := strings.SplitN(spec, ":", 3)
	v := models.Variable{Name: strings.TrimSpace(parts[0])}
	if v.Name == "" {
		return v, fmt.Errorf("variable spec requires a name")
	}
	if len(parts) > 1 {
		v.Description = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		v.Default = parts[2]
	}
	return v, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// createTemplate creates a new template
func (c *CLI) createTemplate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("create requires a template name")
	}

	t := &models.Template{Name: args[0]}
	for i := 1; i < len(args); {
		consumed := templateFlags(t, args, i)
		if consumed == 0 {
			return fmt.Errorf("unknown or incomplete flag: %s", args[i])
		}
		i += consumed
	}

	if existing, err := c.service.GetTemplate(models.Slugify(t.Name)); err == nil && existing != nil {
		return fmt.Errorf("template '%s' already exists (use 'edit' to change it)", existing.ID)
	}

	stored, err := c.service.SaveTemplate(t)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	fmt.Printf("Created template: %s\n", stored.ID)
	return nil
}

// editTemplate updates fields of an existing template
func (c *CLI) editTemplate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("edit requires a template ID")
	}

	t, err := c.service.GetTemplate(args[0])
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}

	updated := t.Clone()
	var clearVars bool
	for i := 1; i < len(args); {
		if args[i] == "--name" && i+1 < len(args) {
			// Renaming changes the slug, so the record moves to a new ID.
			updated.Name = args[i+1]
			updated.ID = ""
			i += 2
			continue
		}
		if args[i] == "--clear-vars" {
			clearVars = true
			i++
			continue
		}
		consumed := templateFlags(updated, args, i)
		if consumed == 0 {
			return fmt.Errorf("unknown or incomplete flag: %s", args[i])
		}
		i += consumed
	}
	if clearVars {
		updated.Variables = nil
	}

	stored, err := c.service.SaveTemplate(updated)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	if stored.ID != t.ID {
		if err := c.service.DeleteTemplate(t.ID); err != nil {
			return fmt.Errorf("saved as '%s' but failed to remove old record '%s': %w", stored.ID, t.ID, err)
		}
		fmt.Printf("Renamed template: %s -> %s\n", t.ID, stored.ID)
		return nil
	}

	fmt.Printf("Updated template: %s\n", stored.ID)
	return nil
}

// deleteTemplate removes a template
func (c *CLI) deleteTemplate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("delete requires a template ID")
	}

	id := args[0]
	var force bool
	for _, arg := range args[1:] {
		if arg == "--force" || arg == "-y" {
			force = true
		}
	}

	if !force {
		fmt.Printf("Delete template '%s'? (y/N): ", id)
		var response string
		fmt.Scanln(&response)
		if strings.ToLower(strings.TrimSpace(response)) != "y" {
			fmt.Println("Cancelled")
			return nil
		}
	}

	if err := c.service.DeleteTemplate(id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	fmt.Printf("Deleted template: %s\n", id)
	return nil
}

// duplicateTemplate copies a template under a "(Copy)" name
func (c *CLI) duplicateTemplate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("duplicate requires a template ID")
	}

	dup, err := c.service.DuplicateTemplate(args[0])
	if err != nil {
		return fmt.Errorf("failed to duplicate template: %w", err)
	}

	fmt.Printf("Duplicated as: %s\n", dup.ID)
	return nil
}

// renderTemplate substitutes variables and prints the result
func (c *CLI) renderTemplate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("render requires a template ID")
	}

	id := args[0]
	values := make(map[string]string)
	var asJSON, toClipboard bool

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--var", "-v":
			if i+1 >= len(args) {
				return fmt.Errorf("--var requires name=value")
			}
			name, value, ok := strings.Cut(args[i+1], "=")
			if !ok || name == "" {
				return fmt.Errorf("invalid variable assignment: %s", args[i+1])
			}
			values[name] = value
			i++
		case "--json":
			asJSON = true
		case "--copy", "-c":
			toClipboard = true
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if undeclared, err := c.service.UndeclaredPlaceholders(id); err == nil && len(undeclared) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: undeclared placeholders: %s\n", strings.Join(undeclared, ", "))
	}

	rendered, err := c.service.RenderTemplate(id, values, asJSON)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	if toClipboard {
		if err := clipboard.Copy(rendered); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		fmt.Println("Copied to clipboard!")
		return nil
	}

	fmt.Println(rendered)
	return nil
}

// importTemplates merges a CSV/JSON/YAML file into the catalog
func (c *CLI) importTemplates(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("import requires a file path")
	}

	path := args[0]
	var format importer.Format
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--format", "-f":
			if i+1 < len(args) {
				format = importer.Format(args[i+1])
				i++
			}
		}
	}

	if format == "" {
		detected, err := importer.DetectFormat(path)
		if err != nil {
			return err
		}
		format = detected
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	result, err := c.service.Import(data, format)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}
	fmt.Printf("Imported %d new, updated %d templates\n", result.Created, result.Updated)
	if result.ArchivePath != "" {
		fmt.Printf("Payload archived at: %s\n", result.ArchivePath)
	}
	return nil
}

// exportTemplates writes the catalog (or one record) to stdout or a file
func (c *CLI) exportTemplates(args []string) error {
	format := service.ExportJSON
	var id, outputFile string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--format", "-f":
			if i+1 < len(args) {
				format = service.ExportFormat(args[i+1])
				i++
			}
		case "--output", "-o":
			if i+1 < len(args) {
				outputFile = args[i+1]
				i++
			}
		case "--id":
			if i+1 < len(args) {
				id = args[i+1]
				i++
			}
		default:
			if id == "" && !strings.HasPrefix(args[i], "-") {
				id = args[i]
			}
		}
	}

	if format != service.ExportJSON && format != service.ExportYAML {
		return fmt.Errorf("export format must be json or yaml, got %s", format)
	}

	var data []byte
	var err error
	if id != "" {
		data, err = c.service.ExportTemplate(id, format)
	} else {
		data, err = c.service.Export(format)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputFile, err)
		}
		fmt.Printf("Exported to %s\n", outputFile)
		return nil
	}

	os.Stdout.Write(data)
	return nil
}

// listTags prints every tag in use
func (c *CLI) listTags(args []string) error {
	var format string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--format", "-f":
			if i+1 < len(args) {
				format = args[i+1]
				i++
			}
		}
	}

	tags, err := c.service.ListTags()
	if err != nil {
		return fmt.Errorf("failed to list tags: %w", err)
	}

	if format == "json" {
		return json.NewEncoder(os.Stdout).Encode(tags)
	}
	for _, tag := range tags {
		fmt.Println(tag)
	}
	return nil
}

// handleVersions lists or shows version snapshots
func (c *CLI) handleVersions(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("versions requires a template ID, or 'show <file>'")
	}

	if args[0] == "show" {
		if len(args) < 2 {
			return fmt.Errorf("versions show requires a snapshot file name")
		}
		snap, err := c.service.GetVersion(args[1])
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		return json.NewEncoder(os.Stdout).Encode(snap)
	}

	id := args[0]
	versions, err := c.service.ListVersions(id)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	if len(versions) == 0 {
		fmt.Printf("No snapshots for '%s'\n", id)
		return nil
	}

	fmt.Printf("%-40s %-20s %s\n", "File", "Saved", "Status")
	fmt.Println(strings.Repeat("-", 75))
	for _, v := range versions {
		fmt.Printf("%-40s %-20s %s\n", v.File, v.SavedAt.Format("2006-01-02 15:04:05"), v.Status)
	}
	return nil
}

// formatOutput formats a list of templates for output
func (c *CLI) formatOutput(templates []*models.Template, format string) error {
	switch format {
	case "json":
		return json.NewEncoder(os.Stdout).Encode(templates)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(templates)
	case "ids":
		for _, t := range templates {
			fmt.Println(t.ID)
		}
	case "table":
		fmt.Printf("%-28s %-30s %-10s %s\n", "ID", "Name", "Status", "Updated")
		fmt.Println(strings.Repeat("-", 80))
		for _, t := range templates {
			name := t.Name
			if len(name) > 30 {
				name = name[:27] + "..."
			}
			fmt.Printf("%-28s %-30s %-10s %s\n",
				t.ID, name, t.Status, t.UpdatedAt.Format("2006-01-02"))
		}
	default:
		for _, t := range templates {
			fmt.Printf("%s - %s\n", t.ID, t.Name)
			if t.Description != "" {
				fmt.Printf("  %s\n", t.Description)
			}
			if len(t.Tags) > 0 {
				fmt.Printf("  Tags: %s\n", strings.Join(t.Tags, ", "))
			}
			fmt.Println()
		}
	}
	return nil
}

// formatSingleTemplate formats one template for output
func (c *CLI) formatSingleTemplate(t *models.Template, format string) error {
	switch format {
	case "json":
		return json.NewEncoder(os.Stdout).Encode(t)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(t)
	default:
		fmt.Printf("ID: %s\n", t.ID)
		fmt.Printf("Name: %s\n", t.Name)
		fmt.Printf("Status: %s\n", t.Status)
		if t.Description != "" {
			fmt.Printf("Description: %s\n", t.Description)
		}
		if t.UseCase != "" {
			fmt.Printf("Use case: %s\n", t.UseCase)
		}
		if t.Audience != "" {
			fmt.Printf("Audience: %s\n", t.Audience)
		}
		if t.ModelFamily != "" {
			fmt.Printf("Model family: %s\n", t.ModelFamily)
		}
		if t.Owner != "" {
			fmt.Printf("Owner: %s\n", t.Owner)
		}
		if len(t.Tags) > 0 {
			fmt.Printf("Tags: %s\n", strings.Join(t.Tags, ", "))
		}
		if len(t.Variables) > 0 {
			fmt.Println("Variables:")
			for _, v := range t.Variables {
				line := "  " + v.Name
				if v.Description != "" {
					line += " - " + v.Description
				}
				if v.Default != "" {
					line += fmt.Sprintf(" (default: %s)", v.Default)
				}
				fmt.Println(line)
			}
		}
		fmt.Printf("Created: %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("Updated: %s\n", t.UpdatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("Estimated tokens: ~%d\n", renderer.TokenEstimate(t.System+t.User))
		if t.System != "" {
			fmt.Printf("\nSystem:\n%s\n", t.System)
		}
		if t.User != "" {
			fmt.Printf("\nUser:\n%s\n", t.User)
		}
		if t.Tools != "" {
			fmt.Printf("\nTools:\n%s\n", t.Tools)
		}
	}
	return nil
}

func (c *CLI) printUsage() error {
	fmt.Println(`prompt-catalog - Prompt template catalog

Usage: prompt-catalog <command> [options]

Commands:
  list, ls              List templates (--tag, --status, --model-family, --owner, --format)
  search <query>        Fuzzy search templates
  get, show <id>        Show a specific template
  create, new <name>    Create a new template
  edit <id>             Edit an existing template
  delete, rm <id>       Delete a template
  duplicate <id>        Duplicate a template
  render <id>           Render with --var name=value (--json for message format, --copy to clipboard)
  import <file>         Import and merge CSV/JSON/YAML
  export [id]           Export the catalog or one template (--format json|yaml, --output)
  tags                  List all tags
  versions <id>         List snapshots (versions show <file> prints one)
  help                  Show help

Use --format json|yaml|table|ids with list/search/get where applicable.`)
	return nil
}
