package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/ipdd/internal/llm"
	"github.com/ppiankov/ipdd/internal/pipeline"
	"github.com/ppiankov/ipdd/internal/validate"
)

var (
	scrapeOutDir  string
	scrapeTimeout time.Duration
	noSearch      bool
	checkLinks    bool
	ignoreRobots  bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <urls.json>",
	Short: "Scrape technology-transfer pages into detailed records",
	Long: `Scrape fetches each page of a URL list and extracts the technology
details. Pages that cannot be fetched, or that yield too little, are
filled in by a search-capable model.

The input file is {"source_id": "...", "urls": [{"url": "...", "id": "..."}]}.
Output is detailed_<source>.json plus a timestamped backup.

Example:
  ipdd scrape filtered_urls_stanford.json
  ipdd scrape urls.json --output-dir data/scraped --check-links`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeOutDir, "output-dir", "data/scraped", "output directory")
	scrapeCmd.Flags().DurationVar(&scrapeTimeout, "timeout", 2*time.Hour, "overall timeout")
	scrapeCmd.Flags().BoolVar(&noSearch, "no-search", false, "never fall back to the search model")
	scrapeCmd.Flags().BoolVar(&checkLinks, "check-links", false, "check every web citation the search model returns")
	scrapeCmd.Flags().BoolVar(&ignoreRobots, "ignore-robots", false, "do not consult robots.txt")
}

func runScrape(cmd *cobra.Command, args []string) error {
	urlsFile := args[0]
	list, err := pipeline.LoadURLList(urlsFile)
	if err != nil {
		return err
	}
	if ignoreRobots {
		cfg.HTTP.RespectRobots = false
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scrapeTimeout)
	defer cancel()

	opts := []pipeline.ScraperOption{pipeline.WithScrapeLogger(logger)}
	if !noSearch {
		search, err := newSearchGenerator()
		if err != nil {
			logger.Warn("search model unavailable, page extraction only", zap.Error(err))
		} else {
			opts = append(opts, pipeline.WithSearchModel(search))
		}
	}
	if checkLinks {
		classifier, err := validate.NewCitationClassifier(&cfg.Citation)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithLinkChecker(validate.NewLinkChecker(cfg.HTTP, cfg.Concurrency.Workers, classifier)))
	}

	banner("ipdd Scraper")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", urlsFile)
	fmt.Fprintf(os.Stderr, "  Source:       %s\n", list.SourceID)
	fmt.Fprintf(os.Stderr, "  Pages:        %d\n", len(list.URLs))
	fmt.Fprintf(os.Stderr, "  Search model: %s\n", cfg.Search.Model)
	fmt.Fprintf(os.Stderr, "\n")

	scraper := pipeline.NewScraper(cfg, opts...)
	out, runErr := scraper.ScrapeAll(ctx, list)

	mainPath, backup, err := pipeline.WriteScrapeOutput(out, urlsFile, scrapeOutDir, time.Now())
	if err != nil {
		return err
	}

	banner("Scraping Complete")
	fmt.Fprintf(os.Stderr, "  Total:        %d\n", out.TotalCount)
	fmt.Fprintf(os.Stderr, "  Traditional:  %d\n", out.TraditionalCount)
	fmt.Fprintf(os.Stderr, "  Search model: %d\n", out.SearchModelCount)
	fmt.Fprintf(os.Stderr, "  Cost:         $%.2f\n", out.TotalCost)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", mainPath)
	fmt.Fprintf(os.Stderr, "  Backup:       %s\n", backup)
	fmt.Fprintf(os.Stderr, "\n")

	if runErr != nil {
		return fmt.Errorf("scrape interrupted: %w", runErr)
	}
	return nil
}

// newSearchGenerator builds the search-model fallback. Search models are
// OpenAI models, so the OpenAI provider is used whatever llm.provider says.
func newSearchGenerator() (llm.Generator, error) {
	c := *cfg
	if !strings.EqualFold(c.LLM.Provider, "openai") {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		c.LLM.BaseURL = ""
	}
	if c.LLM.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	c.LLM.Provider = "openai"
	c.LLM.Model = c.Search.Model
	c.LLM.MaxTokens = c.Search.MaxTokens
	return newGenerator(&c, logger)
}
