package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fadilmartias/jobmatch/internal/bootstrap"
	"github.com/fadilmartias/jobmatch/internal/config"
	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/ingest"
	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/fadilmartias/jobmatch/internal/search"
	"github.com/fadilmartias/jobmatch/internal/util"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "jobmatch",
		Short:        "Ingest, embed, cluster and search job offers",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			appConfig := config.LoadAppConfig()
			logging.Init(logging.Config{Level: appConfig.LogLevel, Format: appConfig.LogFormat})
		},
	}
	rootCmd.AddCommand(
		newIngestCmd(),
		newFitTFIDFCmd(),
		newFitKMeansCmd(),
		newProcessCmd(),
		newSummaryCmd(),
		newModelsCmd(),
		newRenameCmd(),
		newSearchCmd(),
	)
	return rootCmd
}

// withApp connects, wires and closes the application around fn.
func withApp(ctx context.Context, fn func(*bootstrap.App) error) error {
	db, err := bootstrap.ConnectDB(config.LoadDBConfig(), config.LoadAppConfig())
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.Err(err).Msg("close application")
		}
	}()
	return fn(app)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newIngestCmd() *cobra.Command {
	var source, file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest offers newer than the latest stored date from a JSON-lines file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				report, err := app.Pipeline.SyncSource(cmd.Context(), ingest.NewJSONLFile(strings.ToUpper(source), file))
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source name (NTNE or APEC)")
	cmd.Flags().StringVar(&file, "file", "", "JSON-lines offers file")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFitTFIDFCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fit-tfidf",
		Short: "Refit the vectorizer and reducers on every stored offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				report, err := app.Pipeline.FitTFIDF(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
}

func newFitKMeansCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "fit-kmeans",
		Short: "Refit the clusters on the current embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				report, err := app.Pipeline.FitKMeans(cmd.Context(), k)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "Number of clusters (default NLP_CLUSTERS)")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Embed and cluster offers that have no cluster yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				report, err := app.Pipeline.Process(cmd.Context(), strings.ToUpper(source))
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only process this source")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals, latest date and null counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				info, err := app.Pipeline.SourceInfo(cmd.Context(), strings.ToUpper(source))
				if err != nil {
					return err
				}
				return printJSON(info)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only summarize this source")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List fitted model artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				return printJSON(app.Pipeline.Models())
			})
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-clusters",
		Short: "Ask the naming backend again for the stored clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				n, err := app.Pipeline.RenameClusters(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("%d clusters named\n", n)
				return nil
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var (
		query, resumePath string
		filters           dto.OfferFilter
		category          int
		limit             int
		asJSON            bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Rank offers against a query and/or a resume",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := search.Request{Query: query, Filters: filters, Limit: limit}
			if cmd.Flags().Changed("category") {
				req.Filters.Category = &category
			}
			if resumePath != "" {
				data, err := os.ReadFile(resumePath)
				if err != nil {
					return err
				}
				text := string(data)
				if strings.EqualFold(filepath.Ext(resumePath), ".pdf") {
					if text, err = util.ExtractPDFText(data); err != nil {
						return err
					}
				}
				req.Resume = text
			}
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.Search.Search(cmd.Context(), req)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(result)
				}
				for _, hit := range result.Hits {
					score := "  -"
					if hit.Distance != nil {
						score = fmt.Sprintf("%3d", search.DisplayScore(*hit.Distance))
					}
					fmt.Printf("%s  %6d  %s  %s (%s, %s)\n", score, hit.Offer.ID, hit.Offer.Date, hit.Offer.Title, hit.Offer.Company.Name, hit.Offer.City.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Free-text query")
	cmd.Flags().StringVar(&resumePath, "resume", "", "Resume file (PDF or plain text)")
	cmd.Flags().StringVar(&filters.Company, "company", "", "Exact company name")
	cmd.Flags().StringVar(&filters.City, "city", "", "Exact city name")
	cmd.Flags().StringVar(&filters.Source, "source", "", "Source (NTNE or APEC)")
	cmd.Flags().IntVar(&category, "category", 0, "Cluster id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	return cmd
}
