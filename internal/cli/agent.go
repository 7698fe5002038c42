package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/ipdd/internal/agent"
)

var (
	agentTimeout  time.Duration
	agentWorkers  int
	companiesFile string
)

// agentCmd groups the agent API steps
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Commercial analysis and partner matching via the agent API",
	Long: `Agent commands call an external agent completion API.

  ipdd agent analyze data/scraped/detailed_stanford.json
  ipdd agent match data/scraped/detailed_stanford_analyzed.json

The API key is read from agent.api_key, IPDD_AGENT_API_KEY or AGI_API_KEY,
and the base URL from agent.base_url, IPDD_AGENT_BASE_URL or AGI_API_URL.`,
}

var agentAnalyzeCmd = &cobra.Command{
	Use:   "analyze <detailed.json>",
	Short: "Score the commercial potential of scraped technologies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAgentClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), agentTimeout)
		defer cancel()

		banner("Agent Analysis")
		out, err := agent.NewAnalyzer(client, cfg.Agent.MaxTokens, workers(), logger).AnalyzeFile(ctx, args[0])
		if err != nil {
			return fmt.Errorf("agent analysis failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Output: %s\n\n", out)
		return nil
	},
}

var agentMatchCmd = &cobra.Command{
	Use:   "match <analyzed.json>",
	Short: "Match analysed technologies to candidate companies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAgentClient()
		if err != nil {
			return err
		}

		path := cfg.Agent.CompaniesFile
		if companiesFile != "" {
			path = companiesFile
		}
		var companies []agent.Company
		if path != "" {
			companies, err = agent.LoadCompanies(path)
			if err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), agentTimeout)
		defer cancel()

		banner("Agent Matching")
		out, err := agent.NewMatcher(client, companies, workers(), logger).MatchFile(ctx, args[0])
		if err != nil {
			return fmt.Errorf("agent matching failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Output: %s\n\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentAnalyzeCmd)
	agentCmd.AddCommand(agentMatchCmd)

	agentCmd.PersistentFlags().DurationVar(&agentTimeout, "timeout", time.Hour, "overall timeout")
	agentCmd.PersistentFlags().IntVar(&agentWorkers, "workers", 0, "concurrent agent calls (default from config)")
	agentMatchCmd.Flags().StringVar(&companiesFile, "companies", "", "YAML list of companies (default: built-in list)")
}

func newAgentClient() (*agent.Client, error) {
	client, err := agent.NewClient(cfg.Agent, cfg.HTTP)
	if err != nil {
		return nil, err
	}
	logger.Info("agent API initialized", zap.String("key", agent.MaskKey(cfg.Agent.APIKey)))
	return client, nil
}

func workers() int {
	if agentWorkers > 0 {
		return agentWorkers
	}
	return cfg.Concurrency.AgentWorkers
}
