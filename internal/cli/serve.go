package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"numeric-desensitizer/internal/api"
	"numeric-desensitizer/internal/config"
	"numeric-desensitizer/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.APIPort = port
			}
			st, err := store.Open(a.cfg.StorePath, a.cfg.CacheSize, a.log.Module("STORE"))
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // best-effort on exit

			printBanner(cmd.OutOrStdout(), a.cfg)
			srv := api.New(a.cfg, st, a.metrics, a.log.Module("API"))
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func printBanner(w io.Writer, cfg *config.Config) {
	storeDesc := cfg.StorePath
	if storeDesc == "" {
		storeDesc = "(memory; set STORE_PATH to persist mappings)"
	}
	auth := "disabled"
	if cfg.APIToken != "" {
		auth = "bearer token"
	}

	fmt.Fprintf(w, `
╔══════════════════════════════════════════════════════╗
║          Numeric Desensitizer API                    ║
╚══════════════════════════════════════════════════════╝
  Listen address  : %s
  Mapping store   : %s
  Authentication  : %s
  Max body        : %d bytes
  Extensions      : %s

  Try it:
    curl -s http://%s/desensitize -d '{"text":"深度为500米"}'

  Check status:
    curl http://%s/status
`, cfg.Addr(), storeDesc, auth, cfg.MaxBodyBytes,
		strings.Join(cfg.Extensions, " "),
		cfg.Addr(), cfg.Addr())
}
