package cartograph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/cartograph/pkg/config"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question against the knowledge graph",
	Long: `Ask interprets the question, retrieves matching entities from the
graph and prints the structured answer as JSON.

Examples:
  cartograph ask "What datasets are available for Mumbai?"
  cartograph ask --k 5 "List sensors that measure sea surface temperature"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askK       int
	askTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().IntVar(&askK, "k", 0, "Maximum number of results (0 uses the configured default)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 30*time.Second, "Hard ceiling on query time")
	askCmd.Flags().String("store-driver", "", "Graph store driver (memory, badger, neo4j)")
	askCmd.Flags().String("store-uri", "", "Graph store URI/path")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if driver, _ := cmd.Flags().GetString("store-driver"); driver != "" {
		cfg.Store.Driver = driver
	}
	if uri, _ := cmd.Flags().GetString("store-uri"); uri != "" {
		cfg.Store.URI = uri
	}

	client, _, err := initializeClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize Cartograph: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	question := strings.Join(args, " ")
	payload, err := client.Answer(ctx, question, nil, askK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
