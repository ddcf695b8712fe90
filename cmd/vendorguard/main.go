package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/config"
	"github.com/jmerrifield20/vendorguard/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	serverURL string
	apiToken  string
	verbose   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vendorguard",
		Short: "AI-assisted vendor risk screening",
		Long: `vendorguard scores vendors on financial, security, compliance and
reputation risk using a hosted language model, and recommends APPROVE,
FLAG_FOR_REVIEW or REJECT.

Without --server, analyses run in-process using configs/vendorguard.yaml and
VENDORGUARD_* environment variables. With --server, the CLI talks to a
running vendorguard-server instead.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if serverURL == "" {
				serverURL = os.Getenv("VENDORGUARD_SERVER")
			}
			if apiToken == "" {
				apiToken = os.Getenv("VENDORGUARD_TOKEN")
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default configs/vendorguard.yaml)")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "vendorguard server URL (env VENDORGUARD_SERVER); runs locally when empty")
	root.PersistentFlags().StringVar(&apiToken, "token", "", "API bearer token for --server (env VENDORGUARD_TOKEN)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newAuditCmd())
	root.AddCommand(newPolicyCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// newLogger is silent unless --verbose is set.
func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func loadConfig(logger *zap.Logger) (config.Config, error) {
	return config.Load(config.NewViper(cfgFile), logger)
}

func newClient(timeout time.Duration) (*client.Client, error) {
	opts := []client.Option{}
	if apiToken != "" {
		opts = append(opts, client.WithBearerToken(apiToken))
	}
	if timeout > 0 {
		opts = append(opts, client.WithTimeout(timeout))
	}
	return client.New(serverURL, opts...)
}

func requireServer(cmd string) error {
	if serverURL == "" {
		return fmt.Errorf("%s needs --server: session history lives in a running vendorguard-server", cmd)
	}
	return nil
}

// ── version ──────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vendorguard CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vendorguard %s\n", version)
		},
	}
}
