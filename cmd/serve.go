package cmd

import (
	"github.com/danielolaszy/prreview/internal/config"
	"github.com/danielolaszy/prreview/internal/pipeline"
	"github.com/danielolaszy/prreview/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd starts the HTTP backend used by the web frontend.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API used by the web frontend.

POST /api/generate-summary accepts the repositories, year, GitHub username and
token, and the job-requirements document, and returns the markdown summary.
The API is protected with basic auth (APP_USERNAME / APP_PASSWORD). When
STATIC_DIR is set, the frontend build is served from /.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		if dir, _ := cmd.Flags().GetString("static-dir"); dir != "" {
			cfg.Server.StaticDir = dir
		}

		if err := config.ValidateServerConfig(cfg); err != nil {
			return err
		}

		svc, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		return server.NewServer(svc, cfg.Server).ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (defaults to PORT or 5001)")
	serveCmd.Flags().String("static-dir", "", "Directory with the frontend build (defaults to STATIC_DIR)")
}
