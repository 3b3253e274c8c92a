package recipes

import (
	"fmt"
	"strings"
	"text/template"
)

const (
	defaultCommitMessageTemplate    = "Applied recipe {{ .RecipeName }}"
	defaultPullRequestTitleTemplate = "Applied recipe {{ .RecipeName }}"
	defaultPullRequestBodyTemplate  = `Hello ` + "`{{ .PluginName }}`" + ` developers!

This pull request applies the ` + "`{{ .RecipeName }}`" + ` recipe: {{ .RecipeDescription }}.
{{- if .CoreVersion }}

The plugin was built against Jenkins core {{ .CoreVersion }}{{ if .JDKMajor }} with JDK {{ .JDKMajor }}{{ end }}.
{{- end }}

It was generated automatically; please review the changes before merging.
`
	templateRenderErrorTemplateConstant = "render %s for recipe %s: %w"
	commitMessageTemplateNameConstant   = "commit message"
	pullRequestTitleTemplateName        = "pull request title"
	pullRequestBodyTemplateName         = "pull request body"
)

// TemplateData is the value commit and pull request templates are executed against.
type TemplateData struct {
	PluginName        string
	RecipeName        string
	RecipeDescription string
	CoreVersion       string
	JDKMajor          int
}

// Texts groups the rendered commit and pull request text.
type Texts struct {
	CommitMessage    string
	PullRequestTitle string
	PullRequestBody  string
}

// Render executes the recipe's templates, falling back to generic text for templates it does not declare.
func (recipe Recipe) Render(data TemplateData) (Texts, error) {
	data.RecipeName = recipe.Name
	data.RecipeDescription = strings.TrimSuffix(strings.TrimSpace(recipe.Description), ".")

	commitMessage, commitError := renderTemplate(recipe.Name, commitMessageTemplateNameConstant, firstNonEmpty(recipe.CommitMessageTemplate, defaultCommitMessageTemplate), data)
	if commitError != nil {
		return Texts{}, commitError
	}
	title, titleError := renderTemplate(recipe.Name, pullRequestTitleTemplateName, firstNonEmpty(recipe.PullRequestTitleTemplate, defaultPullRequestTitleTemplate), data)
	if titleError != nil {
		return Texts{}, titleError
	}
	body, bodyError := renderTemplate(recipe.Name, pullRequestBodyTemplateName, firstNonEmpty(recipe.PullRequestBodyTemplate, defaultPullRequestBodyTemplate), data)
	if bodyError != nil {
		return Texts{}, bodyError
	}

	return Texts{
		CommitMessage:    strings.TrimSpace(commitMessage),
		PullRequestTitle: strings.TrimSpace(title),
		PullRequestBody:  strings.TrimSpace(body) + "\n",
	}, nil
}

func renderTemplate(recipeName string, templateName string, templateText string, data TemplateData) (string, error) {
	parsedTemplate, parseError := template.New(templateName).Option("missingkey=error").Parse(templateText)
	if parseError != nil {
		return "", fmt.Errorf(templateRenderErrorTemplateConstant, templateName, recipeName, parseError)
	}
	var rendered strings.Builder
	if executeError := parsedTemplate.Execute(&rendered, data); executeError != nil {
		return "", fmt.Errorf(templateRenderErrorTemplateConstant, templateName, recipeName, executeError)
	}
	return rendered.String(), nil
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if len(strings.TrimSpace(candidate)) > 0 {
			return candidate
		}
	}
	return ""
}
