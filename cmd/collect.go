package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/collector"
	"github.com/JakeFAU/contact-harvester/internal/progress"
	"github.com/JakeFAU/contact-harvester/internal/search"
)

type collectOptions struct {
	keywords []string
	city     string
	max      int
}

// newCollectCmd creates the 'collect' subcommand, which searches for the
// given keywords and saves the business addresses it validates.
func newCollectCmd() *cobra.Command {
	opts := &collectOptions{}
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collects contact emails for one or more keywords",
		Long: `Searches the web for each keyword, visits the result sites, and saves
the addresses that pass the business filter and have mail exchangers.
A keyword may hold several terms separated by "|".`,
		Example: `  harvester collect -k "padaria" -k "confeitaria | doceria" --city Curitiba --max 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var keywords []string
			for _, raw := range opts.keywords {
				keywords = append(keywords, search.SplitKeywords(raw)...)
			}
			if len(keywords) == 0 {
				return errors.New("at least one --keyword is required")
			}
			return runCollect(cmd, collector.Request{Keywords: keywords, City: opts.city, MaxResults: opts.max})
		},
	}
	cmd.Flags().StringArrayVarP(&opts.keywords, "keyword", "k", nil, "search keyword (repeatable)")
	cmd.Flags().StringVar(&opts.city, "city", "", "city appended to every query")
	cmd.Flags().IntVar(&opts.max, "max", 0, "stop after this many new emails (default collect.max_results)")
	return cmd
}

// newCollectCityCmd creates the 'collect-city' subcommand, which runs every
// configured search term against one city.
func newCollectCityCmd() *cobra.Command {
	opts := &collectOptions{}
	cmd := &cobra.Command{
		Use:   "collect-city",
		Short: "Collects contact emails for all configured search terms in a city",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			terms := appInstance.Config().Search.Terms
			if len(terms) == 0 {
				return errors.New("search.terms is empty")
			}
			return runCollect(cmd, collector.Request{Keywords: terms, City: opts.city, MaxResults: opts.max})
		},
	}
	cmd.Flags().StringVar(&opts.city, "city", "", "city appended to every query")
	cmd.Flags().IntVar(&opts.max, "max", 0, "stop after this many new emails (default collect.max_results)")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func runCollect(cmd *cobra.Command, req collector.Request) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	run := appInstance.StartRun(progress.FlowCollect)
	logger.Info("collection started",
		zap.String("run_id", run.ID().String()),
		zap.Strings("keywords", req.Keywords),
		zap.String("city", req.City),
	)

	emit := progress.Tee(run, newPrinter(cmd.OutOrStdout(), progress.FlowCollect))
	found, err := appInstance.Collect(cmd.Context(), req, emit)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d new contacts saved\n", len(found))
	logger.Info("Collect command finished.", zap.Int("found", len(found)))
	return nil
}
