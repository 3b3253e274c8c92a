package recipes

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const (
	commandNameConstant         = "recipes"
	commandShortDescription     = "List available recipes"
	commandLongDescription      = "recipes lists every named transformation that can be passed to run --recipe."
	listHeaderConstant          = "NAME\tTAGS\tDESCRIPTION"
	listRowTemplateConstant     = "%s\t%s\t%s\n"
	tagSeparatorConstant        = ","
	tabMinWidthConstant         = 0
	tabWidthConstant            = 4
	tabPaddingConstant          = 2
	tabPaddingCharacterConstant = ' '
)

// CatalogueProvider supplies the recipe catalogue for command execution.
type CatalogueProvider func() (*Catalogue, error)

// CommandBuilder assembles the recipes cobra command.
type CommandBuilder struct {
	CatalogueProvider CatalogueProvider
}

// Build constructs the recipes command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   commandNameConstant,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	provider := builder.CatalogueProvider
	if provider == nil {
		provider = DefaultCatalogue
	}
	catalogue, catalogueError := provider()
	if catalogueError != nil {
		return catalogueError
	}

	tableWriter := tabwriter.NewWriter(command.OutOrStdout(), tabMinWidthConstant, tabWidthConstant, tabPaddingConstant, tabPaddingCharacterConstant, 0)
	if _, writeError := fmt.Fprintln(tableWriter, listHeaderConstant); writeError != nil {
		return writeError
	}
	for _, recipe := range catalogue.All() {
		if _, writeError := fmt.Fprintf(tableWriter, listRowTemplateConstant, recipe.Name, strings.Join(recipe.Tags, tagSeparatorConstant), recipe.Description); writeError != nil {
			return writeError
		}
	}
	return tableWriter.Flush()
}
