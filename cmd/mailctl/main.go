package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
	"github.com/mailblast/mailblast/internal/service"
	"github.com/mailblast/mailblast/internal/sheet"
)

var rootCmd = &cobra.Command{
	Use:           "mailctl",
	Short:         "Operator tool for mailblast",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var previewCmd = &cobra.Command{
	Use:   "preview [file]",
	Short: "Render the message body for every row of a recipient sheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration and report which providers are available",
	RunE:  runCheckConfig,
}

var (
	previewBody     string
	previewBodyFile string
	previewFailOnly bool
)

func init() {
	previewCmd.Flags().StringVarP(&previewBody, "body", "b", "", "message body template")
	previewCmd.Flags().StringVar(&previewBodyFile, "body-file", "", "read the message body template from a file")
	previewCmd.Flags().BoolVar(&previewFailOnly, "fallbacks", false, "only print rows that fall back to the literal template")

	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPreview(cmd *cobra.Command, args []string) error {
	body := previewBody
	if previewBodyFile != "" {
		data, err := os.ReadFile(previewBodyFile)
		if err != nil {
			return fmt.Errorf("failed to read body file: %w", err)
		}
		body = string(data)
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("a body template is required (--body or --body-file)")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open sheet: %w", err)
	}
	defer f.Close()

	s, err := sheet.Parse(args[0], f)
	if err != nil {
		return err
	}

	rows := service.Preview(body, s.Rows)
	return printPreview(cmd.OutOrStdout(), rows, previewFailOnly)
}

func printPreview(w io.Writer, rows []service.PreviewResult, fallbacksOnly bool) error {
	fallbacks := 0
	for _, r := range rows {
		if r.Fallback {
			fallbacks++
		} else if fallbacksOnly {
			continue
		}

		recipient := r.Recipient
		if recipient == "" {
			recipient = "(no email)"
		}
		status := "ok"
		if r.Fallback {
			status = "fallback"
			if len(r.Missing) > 0 {
				status += " missing=" + strings.Join(r.Missing, ",")
			}
		}
		if _, err := fmt.Fprintf(w, "#%d %s [%s]\n%s\n\n", r.Row, recipient, status, r.Text); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d rows, %d fallback\n", len(rows), fallbacks)
	return err
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	failed := false
	if err := cfg.Validate(); err != nil {
		failed = true
		fmt.Fprintf(out, "config: %v\n", err)
	}

	providers, errs := oauth.FromConfig(cfg)
	for _, p := range model.Providers() {
		if providers.Configured(p) {
			fmt.Fprintf(out, "%-10s configured\n", p)
			continue
		}
		fmt.Fprintf(out, "%-10s not configured\n", p)
	}
	for _, err := range errs {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) || errors.Is(err, oauth.ErrNoProviders) {
			failed = true
			fmt.Fprintf(out, "  %v\n", err)
		}
	}

	if failed {
		return errors.New("configuration is incomplete")
	}
	fmt.Fprintln(out, "configuration OK")
	return nil
}
