package commands

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ridewise-ai/ridewise/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the model catalog",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the catalog and report its feature space",
	RunE:  runCatalogCheck,
}

func init() {
	catalogCmd.AddCommand(catalogCheckCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogCheck(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	a.ui.Section("Catalog")
	a.ui.KeyValue("Path", a.cfg.Catalog.Path)
	a.ui.KeyValue("Models", a.cat.Len())
	a.ui.KeyValue("Feature dimensions", a.cat.Dimension())

	// Re-derive every divisor so a catalog that cannot encode fails loudly
	// here instead of mid-session.
	bar := progressbar.Default(int64(len(a.cat.Specs())), "checking attributes")
	var problems []string
	for _, spec := range a.cat.Specs() {
		if spec.Kind == catalog.KindNumeric {
			if _, err := a.cat.NormalizationDivisor(spec.Name); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", spec.Name, err))
			}
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	a.ui.Newline()
	for _, spec := range a.cat.SelectableSpecs() {
		if spec.Kind == catalog.KindCategorical {
			a.ui.KeyValue(spec.Name, fmt.Sprintf("%d values", len(a.cat.DomainValues(spec.Name))))
		}
	}

	if len(problems) > 0 {
		for _, p := range problems {
			a.ui.Error("%s", p)
		}
		return fmt.Errorf("catalog check found %d problems", len(problems))
	}

	a.ui.Success("Catalog is valid.")
	return nil
}
