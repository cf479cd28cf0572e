// Package cli implements the converter command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-converter-agent/internal/config"
	"github.com/nerdneilsfield/go-converter-agent/internal/logger"
)

var (
	cfgFile   string
	debugMode bool
)

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "converter",
		Short: "PDF/DOCX conversion and text replacement toolkit",
		Long: `converter drives LibreOffice for PDF/DOCX conversion and performs
structure-preserving text replacement in both formats.

DOCX files produced by the PDF import are additionally flattened: the
absolutely positioned text boxes the import scatters through the body are
unwrapped into plain paragraphs and repeated text is dropped, so that
downstream tools see a linear document.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $HOME/.converter.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newFlattenCommand())
	rootCmd.AddCommand(newReplaceCommand())
	rootCmd.AddCommand(newReplacePDFCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// loadRuntime loads the configuration and builds a logger for it, applying
// flag overrides on top of file and environment values.
func loadRuntime(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debugMode
	}

	var log *zap.Logger
	if cfg.Debug {
		log = logger.NewLogger(true)
	} else {
		log = logger.NewLoggerAt(cfg.LogLevel)
	}
	return cfg, log, nil
}

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "converter %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}
