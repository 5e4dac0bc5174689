// Package cli — командная строка: сервер и ручной перезапуск синхронизаций.
package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"coursesync/config"
	"coursesync/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "coursesync",
	Short:         "Enrollment and purchase sync to the CRM",
	Long:          `coursesync propagates course enrollments and purchases into the marketing CRM, per tenant location.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or /etc/coursesync/config.yaml)")
	rootCmd.AddCommand(serveCmd(), syncCmd(), auditCmd(), tenantsCmd())
}

// bootstrap — конфиг + полностью собранное приложение.
func bootstrap() (*server.App, error) {
	if cfgFile != "" {
		if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app := &server.App{}
	if err := app.Initialize(cfg); err != nil {
		return nil, err
	}
	return app, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
