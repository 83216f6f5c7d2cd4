package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Inspect and export the case base",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored historical cases",
	RunE:  runCasesList,
}

var exportOutput string

var casesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the case base to a JSON lines file",
	RunE:  runCasesExport,
}

func init() {
	casesExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "cases.jsonl", "output file path")
	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesExportCmd)
	rootCmd.AddCommand(casesCmd)
}

func runCasesList(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	cases, err := a.memory.ReadAll(cmd.Context())
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		a.ui.Info("The case base is empty.")
		return nil
	}

	rows := make([][]string, 0, len(cases))
	for _, hc := range cases {
		model := ""
		if len(hc.ChosenModels) > 0 {
			model = hc.ChosenModels[0].Model
		}
		rows = append(rows, []string{
			hc.CaseID,
			model,
			strconv.FormatBool(hc.IsRefined),
			strconv.Itoa(hc.RefineIterationCount),
			hc.Timestamp.Format("2006-01-02 15:04"),
		})
	}
	a.ui.Table([]string{"Case", "Model", "Refined", "Steps", "Recorded"}, rows)
	a.ui.Info("%d cases total", len(cases))
	return nil
}

// exportedCase is the JSON lines export shape.
type exportedCase struct {
	CaseID               string                    `json:"case_id"`
	UserInput            catalog.Preferences       `json:"user_input"`
	IsRefined            bool                      `json:"is_refined"`
	RefineSteps          []casebase.RefinementStep `json:"refine_steps"`
	RefineIterationCount int                       `json:"refine_iteration_count"`
	ChosenModels         []casebase.ChosenModel    `json:"chosen_models"`
	UserRanked           bool                      `json:"user_ranked"`
	Timestamp            string                    `json:"timestamp"`
}

func runCasesExport(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	cases, err := a.memory.ReadAll(cmd.Context())
	if err != nil {
		return err
	}

	out, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	progress := mpb.New(mpb.WithWidth(64))
	bar := progress.AddBar(int64(len(cases)),
		mpb.PrependDecorators(
			decor.Name("exporting", decor.WC{W: 10, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
		),
	)

	enc := json.NewEncoder(out)
	for _, hc := range cases {
		steps := hc.RefineSteps
		if steps == nil {
			steps = []casebase.RefinementStep{}
		}
		if err := enc.Encode(exportedCase{
			CaseID:               hc.CaseID,
			UserInput:            hc.UserInput,
			IsRefined:            hc.IsRefined,
			RefineSteps:          steps,
			RefineIterationCount: hc.RefineIterationCount,
			ChosenModels:         hc.ChosenModels,
			UserRanked:           hc.UserRanked,
			Timestamp:            hc.Timestamp.Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("write case %s: %w", hc.CaseID, err)
		}
		bar.Increment()
	}
	progress.Wait()

	a.ui.Success("Exported %d cases to %s", len(cases), exportOutput)
	return nil
}
