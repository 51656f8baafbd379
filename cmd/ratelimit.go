package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hal/prflow/config"
	"github.com/hal/prflow/internal/ghclient"
)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit() *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit",
		Short: "Check GitHub API rate limit status",
		Long:  `Display the current GitHub API rate limit status for the core and GraphQL APIs.`,
		RunE:  runRateLimitStatus,
	}
}

func runRateLimitStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token := cfg.GetGitHubToken()
	if token == "" {
		return fmt.Errorf("GitHub token not configured. Set the GITHUB_TOKEN environment variable")
	}

	client, err := ghclient.NewClient(cmd.Context(), token)
	if err != nil {
		return err
	}

	limits, err := client.RateLimits(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("GitHub API Rate Limits:")
	fmt.Println()

	if limits.Core != nil {
		fmt.Printf("Core API:   %d/%d remaining (resets in %s)\n",
			limits.Core.Remaining, limits.Core.Limit, untilReset(limits.Core.Reset.Time))
	}

	if limits.GraphQL != nil {
		fmt.Printf("GraphQL:    %d/%d remaining (resets in %s)\n",
			limits.GraphQL.Remaining, limits.GraphQL.Limit, untilReset(limits.GraphQL.Reset.Time))
	}

	return nil
}

func untilReset(reset time.Time) time.Duration {
	resetIn := time.Until(reset).Round(time.Second)
	if resetIn < 0 {
		resetIn = 0
	}
	return resetIn
}
