package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ridewise-ai/ridewise/cmd/ridewise-cli/ui"
	"github.com/ridewise-ai/ridewise/internal/catalog"
	"github.com/ridewise-ai/ridewise/internal/session"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Run an interactive recommendation session",
	Long: `Starts a conversational recommendation session: enter your preferences,
review past users' choices and the similarity ranking, then accept a model
or refine your preferences and rank again.`,
	RunE: runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)
}

func runAdvise(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	a.ui.Section("Your preferences")
	prefs, ranking, err := promptPreferences(a)
	if err != nil {
		return err
	}
	if len(prefs) == 0 {
		a.ui.Warning("No preferences entered, nothing to recommend.")
		return nil
	}

	sess := session.New(a.cat, a.memory, a.logger, a.cfg.Recommend.TopN, prefs, ranking)

	for sess.State() != session.StateTerminal {
		result, err := runRound(ctx, sess)
		if err != nil {
			return err
		}

		showRound(a.ui, result)

		if err := handleFeedback(ctx, a, sess, result); err != nil {
			return err
		}
	}

	if hc := sess.Accepted(); hc != nil {
		a.ui.Success("Recorded your choice as %s", hc.CaseID)
	} else if ref := sess.FinalReference(); ref != nil {
		a.ui.Info("Session closed. Last best match: %s", ref.Model)
	}
	return nil
}

// promptPreferences walks the selectable attributes and collects values; the
// entry order doubles as the default priority ranking.
func promptPreferences(a *app) (catalog.Preferences, []string, error) {
	prefs := catalog.Preferences{}
	var order []string

	a.ui.Info("Press Enter to skip an attribute.")
	for _, spec := range a.cat.SelectableSpecs() {
		value, err := promptValue(a, spec)
		if err != nil {
			return nil, nil, err
		}
		if value == nil {
			continue
		}
		prefs[spec.Name] = *value
		order = append(order, spec.Name)
	}
	if len(prefs) == 0 {
		return prefs, nil, nil
	}

	a.ui.Newline()
	a.ui.Info("Priority order (most important first): %s", strings.Join(order, ", "))
	input, err := ui.Prompt("Reorder (comma separated) or press Enter to keep")
	if err != nil {
		return nil, nil, err
	}
	if input != "" {
		order = splitRanking(input)
	}
	return prefs, order, nil
}

func promptValue(a *app, spec catalog.AttributeSpec) (*catalog.Value, error) {
	if spec.Kind == catalog.KindCategorical {
		domain := a.cat.DomainValues(spec.Name)
		input, err := ui.Prompt(fmt.Sprintf("%s (%s)", spec.Name, strings.Join(domain, ", ")))
		if err != nil {
			return nil, err
		}
		if input == "" {
			return nil, nil
		}
		v := catalog.String(input)
		return &v, nil
	}

	input, err := ui.Prompt(spec.Name)
	if err != nil {
		return nil, err
	}
	if input == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(input, 64)
	if err != nil {
		a.ui.Warning("Not a number, skipping %s.", spec.Name)
		return nil, nil
	}
	v := catalog.Number(f)
	return &v, nil
}

func splitRanking(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func runRound(ctx context.Context, sess *session.Session) (session.RoundResult, error) {
	sp := ui.NewSpinner("Matching against the catalog...")
	sp.Start()
	result, err := sess.RunRound(ctx)
	sp.Stop()
	return result, err
}

func showRound(u *ui.UI, result session.RoundResult) {
	if len(result.Popular) > 0 {
		u.Section("Chosen by riders like you")
		rows := make([][]string, 0, len(result.Popular))
		for _, mc := range result.Popular {
			rows = append(rows, []string{mc.Model, strconv.Itoa(mc.Count)})
		}
		u.Table([]string{"Model", "Votes"}, rows)
	}

	u.Section("Best matches")
	rows := make([][]string, 0, len(result.Ranked))
	for i, rec := range result.Ranked {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			rec.Model,
			fmt.Sprintf("%.4f", rec.Similarity),
			fmt.Sprintf("%.4f", rec.FinalScore),
		})
	}
	u.Table([]string{"#", "Model", "Similarity", "Score"}, rows)
}

func handleFeedback(ctx context.Context, a *app, sess *session.Session, result session.RoundResult) error {
	choices := []string{
		fmt.Sprintf("Accept the top match (%s)", result.Ranked[0].Model),
		"Accept another ranked model",
		"Refine my preferences",
		"Quit without choosing",
	}
	if len(result.Popular) > 0 {
		choices = append([]string{"Pick a model other riders chose"}, choices...)
	}

	idx, err := ui.PromptChoice("What next?", choices)
	if err != nil {
		return err
	}
	if len(result.Popular) > 0 {
		if idx == 0 {
			return chooseHistorical(ctx, a, sess, result)
		}
		idx--
	}

	switch idx {
	case 0:
		_, err = sess.AcceptTop(ctx)
		return persistResult(a, err)
	case 1:
		models := make([]string, 0, len(result.Ranked)-1)
		for _, rec := range result.Ranked[1:] {
			models = append(models, rec.Model)
		}
		alt, err := ui.PromptChoice("Which one?", models)
		if err != nil {
			return err
		}
		_, err = sess.AcceptAlternative(ctx, alt+1)
		return persistResult(a, err)
	case 2:
		return refine(a, sess)
	default:
		return sess.Abandon()
	}
}

func chooseHistorical(ctx context.Context, a *app, sess *session.Session, result session.RoundResult) error {
	models := make([]string, 0, len(result.Popular))
	for _, mc := range result.Popular {
		models = append(models, fmt.Sprintf("%s (%d votes)", mc.Model, mc.Count))
	}
	idx, err := ui.PromptChoice("Which one?", models)
	if err != nil {
		return err
	}
	_, err = sess.ChooseHistorical(ctx, result.Popular[idx].Model)
	return persistResult(a, err)
}

// persistResult reports a store failure without failing the command: the
// session has already reached its terminal state.
func persistResult(a *app, err error) error {
	if err != nil {
		a.ui.Warning("Could not record your choice: %v", err)
	}
	return nil
}

func refine(a *app, sess *session.Session) error {
	if err := sess.BeginRefinement(); err != nil {
		return err
	}
	a.ui.Section("Refine preferences")
	a.ui.Info("Current reference: %s", sess.FinalReference().Model)

	for sess.State() == session.StateRefining {
		edits := catalog.Preferences{}
		for {
			attr, err := ui.Prompt("Attribute to change (Enter to finish)")
			if err != nil {
				return err
			}
			if attr == "" {
				break
			}
			spec, ok := a.cat.Spec(attr)
			if !ok || !spec.Selectable {
				a.ui.Warning("Unknown attribute %q.", attr)
				continue
			}
			value, err := promptValue(a, spec)
			if err != nil {
				return err
			}
			if value != nil {
				edits[spec.Name] = *value
			}
		}

		if len(edits) == 0 {
			keep, err := ui.Confirm("No changes entered. Keep the current result and stop?", true)
			if err != nil {
				return err
			}
			if keep {
				return sess.CancelRefinement()
			}
			continue
		}

		merged := sess.Preferences()
		for attr, value := range edits {
			merged[attr] = value
		}
		ranking := make([]string, 0, len(merged))
		for attr := range merged {
			ranking = append(ranking, attr)
		}
		a.ui.Info("Priority order: %s", strings.Join(ranking, ", "))
		input, err := ui.Prompt("Reorder (comma separated) or press Enter to keep")
		if err != nil {
			return err
		}
		if input != "" {
			ranking = splitRanking(input)
		}

		switch err := sess.Refine(edits, ranking); err {
		case nil:
			return nil
		case session.ErrNoChanges:
			a.ui.Warning("Those values match your current preferences.")
		default:
			return err
		}
	}
	return nil
}
