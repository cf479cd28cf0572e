package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-converter-agent/internal/convert"
	"github.com/nerdneilsfield/go-converter-agent/internal/server"
)

var servePort int

func newServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()
			if cmd.Flags().Changed("port") {
				cfg.Port = servePort
			}

			engine := convert.NewEngine(cfg.SofficePath, cfg.TempDir, cfg.Timeout(), log)
			if err := engine.Available(); err != nil {
				log.Warn("conversion engine unavailable, conversion endpoints will fail",
					zap.String("binary", cfg.SofficePath),
					zap.Error(err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(engine, log)
			return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
		},
	}

	serveCmd.Flags().IntVar(&servePort, "port", 8001, "listen port")
	return serveCmd
}
