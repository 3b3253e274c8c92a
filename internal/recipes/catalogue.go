package recipes

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	unknownRecipeErrorTemplateConstant   = "unknown recipe %q (known recipes: %s)"
	duplicateRecipeErrorTemplateConstant = "duplicate recipe name %q"
	incompleteRecipeErrorTemplate        = "recipe %q must declare id and artifact"
	catalogueDecodeErrorTemplateConstant = "failed to decode recipe catalogue: %w"
	listSeparatorConstant                = ","
	knownRecipeSeparatorConstant         = ", "
)

//go:embed recipes.yaml
var embeddedCatalogue []byte

// Recipe describes one named transformation.
type Recipe struct {
	Name                     string   `yaml:"name"`
	ID                       string   `yaml:"id"`
	Artifact                 string   `yaml:"artifact"`
	Description              string   `yaml:"description"`
	Tags                     []string `yaml:"tags"`
	CommitMessageTemplate    string   `yaml:"commit_message"`
	PullRequestTitleTemplate string   `yaml:"pull_request_title"`
	PullRequestBodyTemplate  string   `yaml:"pull_request_body"`
}

// UnknownRecipeError reports a recipe name absent from the catalogue. It is a configuration error.
type UnknownRecipeError struct {
	Name  string
	Known []string
}

// Error describes the unknown recipe.
func (unknownError UnknownRecipeError) Error() string {
	return fmt.Sprintf(unknownRecipeErrorTemplateConstant, unknownError.Name, strings.Join(unknownError.Known, knownRecipeSeparatorConstant))
}

// Catalogue indexes recipes by case-insensitive name.
type Catalogue struct {
	recipes []Recipe
	byName  map[string]Recipe
}

type catalogueDocument struct {
	Recipes []Recipe `yaml:"recipes"`
}

// DefaultCatalogue returns the embedded catalogue.
func DefaultCatalogue() (*Catalogue, error) {
	return LoadCatalogue(embeddedCatalogue)
}

// LoadCatalogue decodes a YAML catalogue document.
func LoadCatalogue(document []byte) (*Catalogue, error) {
	var decoded catalogueDocument
	if decodeError := yaml.Unmarshal(document, &decoded); decodeError != nil {
		return nil, fmt.Errorf(catalogueDecodeErrorTemplateConstant, decodeError)
	}

	catalogue := &Catalogue{byName: make(map[string]Recipe, len(decoded.Recipes))}
	for _, recipe := range decoded.Recipes {
		normalizedName := normalizeName(recipe.Name)
		if len(strings.TrimSpace(recipe.ID)) == 0 || len(strings.TrimSpace(recipe.Artifact)) == 0 {
			return nil, fmt.Errorf(incompleteRecipeErrorTemplate, recipe.Name)
		}
		if _, duplicate := catalogue.byName[normalizedName]; duplicate {
			return nil, fmt.Errorf(duplicateRecipeErrorTemplateConstant, recipe.Name)
		}
		catalogue.byName[normalizedName] = recipe
		catalogue.recipes = append(catalogue.recipes, recipe)
	}
	sort.Slice(catalogue.recipes, func(left int, right int) bool {
		return catalogue.recipes[left].Name < catalogue.recipes[right].Name
	})
	return catalogue, nil
}

// Lookup returns the recipe registered under name.
func (catalogue *Catalogue) Lookup(name string) (Recipe, error) {
	recipe, found := catalogue.byName[normalizeName(name)]
	if !found {
		return Recipe{}, UnknownRecipeError{Name: name, Known: catalogue.Names()}
	}
	return recipe, nil
}

// All returns every recipe sorted by name.
func (catalogue *Catalogue) All() []Recipe {
	return append([]Recipe{}, catalogue.recipes...)
}

// Names returns every recipe name sorted.
func (catalogue *Catalogue) Names() []string {
	names := make([]string, 0, len(catalogue.recipes))
	for _, recipe := range catalogue.recipes {
		names = append(names, recipe.Name)
	}
	return names
}

// ActiveRecipes joins the fully-qualified identifiers of recipes with commas.
func ActiveRecipes(selected []Recipe) string {
	identifiers := make([]string, 0, len(selected))
	for _, recipe := range selected {
		identifiers = append(identifiers, recipe.ID)
	}
	return strings.Join(identifiers, listSeparatorConstant)
}

// ArtifactCoordinates joins the distinct artifact coordinates of recipes with commas, in first-seen order.
func ArtifactCoordinates(selected []Recipe) string {
	coordinates := make([]string, 0, len(selected))
	for _, recipe := range selected {
		if !slices.Contains(coordinates, recipe.Artifact) {
			coordinates = append(coordinates, recipe.Artifact)
		}
	}
	return strings.Join(coordinates, listSeparatorConstant)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
