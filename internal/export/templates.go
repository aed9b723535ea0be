package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var treeTemplate = template.Must(template.New("tree").Funcs(template.FuncMap{
	"lifespan": formatLifespan,
}).Parse(treeTemplateHTML))

// TemplateData holds data for the PDF summary rendering
type TemplateData struct {
	TreeName    string
	Description string
	Owner       string
	GeneratedAt time.Time
	Members     []TemplateMember
	Links       []TemplateLink
}

type TemplateMember struct {
	Name       string
	Gender     string
	BirthDate  *time.Time
	DeathDate  *time.Time
	BirthPlace string
	DeathPlace string
}

type TemplateLink struct {
	Parent string
	Child  string
	Type   string
}

func formatLifespan(birth, death *time.Time) string {
	switch {
	case birth != nil && death != nil:
		return fmt.Sprintf("%d–%d", birth.Year(), death.Year())
	case birth != nil:
		return fmt.Sprintf("b. %d", birth.Year())
	case death != nil:
		return fmt.Sprintf("d. %d", death.Year())
	default:
		return ""
	}
}

func renderTreeHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := treeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render tree template: %w", err)
	}
	return buf.String(), nil
}

const treeTemplateHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.TreeName}}</title>
    <style>
        body { font-family: Georgia, 'Times New Roman', serif; color: #222; margin: 0; }
        h1 { border-bottom: 2px solid #2d6a4f; padding-bottom: 8px; }
        .meta { color: #666; font-size: 13px; margin-bottom: 24px; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 28px; }
        th { text-align: left; border-bottom: 1px solid #999; padding: 6px 8px; font-size: 13px; text-transform: uppercase; letter-spacing: 0.05em; }
        td { border-bottom: 1px solid #e0e0e0; padding: 6px 8px; font-size: 14px; }
        h2 { font-size: 18px; margin-top: 32px; }
        .empty { color: #888; font-style: italic; }
        @page { size: letter; }
    </style>
</head>
<body>
    <h1>{{.TreeName}}</h1>
    <div class="meta">
        {{if .Description}}<p>{{.Description}}</p>{{end}}
        <p>Owner: {{.Owner}} &middot; Generated {{.GeneratedAt.Format "January 2, 2006"}}</p>
    </div>

    <h2>Members</h2>
    {{if .Members}}
    <table>
        <tr><th>Name</th><th>Gender</th><th>Lifespan</th><th>Birthplace</th></tr>
        {{range .Members}}
        <tr>
            <td>{{.Name}}</td>
            <td>{{.Gender}}</td>
            <td>{{lifespan .BirthDate .DeathDate}}</td>
            <td>{{.BirthPlace}}</td>
        </tr>
        {{end}}
    </table>
    {{else}}
    <p class="empty">This tree has no members yet.</p>
    {{end}}

    <h2>Relationships</h2>
    {{if .Links}}
    <table>
        <tr><th>Parent</th><th>Child</th><th>Type</th></tr>
        {{range .Links}}
        <tr><td>{{.Parent}}</td><td>{{.Child}}</td><td>{{.Type}}</td></tr>
        {{end}}
    </table>
    {{else}}
    <p class="empty">No relationships recorded.</p>
    {{end}}
</body>
</html>`
