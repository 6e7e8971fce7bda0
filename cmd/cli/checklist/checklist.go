package checklist

import (
	"fmt"
	"github.com/myrjola/fsvalidator/internal/catalog"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "checklist",
	Title: "Checklist",
}

func init() {
	List.Flags().String("path", "", "catalog JSON file to use instead of the built-in one")
}

// Load returns the catalog at path or the built-in catalog when path is empty.
func Load(path string) (*catalog.Catalog, error) {
	if path == "" {
		cat, err := catalog.Default()
		return cat, errors.Wrap(err, "load built-in catalog")
	}
	cat, err := catalog.LoadFile(path)
	return cat, errors.Wrap(err, "load catalog file")
}

var List = &cobra.Command{
	Use:     "catalog",
	GroupID: "checklist",
	Short:   "List validation categories",
	Long:    "Lists the validation categories and their numbered questions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("path")
		cat, err := Load(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "catalog version %d\n", cat.Version())
		for _, category := range cat.Categories() {
			_, _ = fmt.Fprintf(out, "\n%s (%s): %s\n", category.Name, category.Key, category.Description)
			for i, question := range category.Questions {
				_, _ = fmt.Fprintf(out, "%3d. %s\n", i+1, question)
			}
		}
		return nil
	},
}
