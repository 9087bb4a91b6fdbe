// Command render prints the redirect page for a host, or runs the
// placeholder pass over an existing HTML file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spencer-p/tidelink/pkg/logger"
	"github.com/spencer-p/tidelink/pkg/page"
	"github.com/spencer-p/tidelink/pkg/placeholder"
	"github.com/spencer-p/tidelink/pkg/sibling"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		host   string
		in     string
		port   int
		scheme string
		debug  bool
	)

	cmd := &cobra.Command{
		Use:          "render",
		Short:        "Render the sibling redirect page to stdout",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if debug {
				logger.Setup("development")
				defer logger.Sync()
			}
			ctx := logger.WithFields(context.Background(), zap.String("host", host))

			if in != "" {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", in, err)
				}
				defer f.Close()
				n, err := placeholder.Rewrite(c.OutOrStdout(), f, host)
				if err != nil {
					return fmt.Errorf("failed to rewrite %s: %w", in, err)
				}
				logger.Debug(ctx, "rewrote placeholders", zap.String("file", in), zap.Int("replacements", n))
				return nil
			}

			p, err := page.New(page.Options{Scheme: scheme, Port: port})
			if err != nil {
				return err
			}
			logger.Debug(ctx, "rendering page", zap.String("sibling", p.SiblingURL(host)))
			return p.Render(c.OutOrStdout(), page.Input{
				Host:     host,
				Features: page.DefaultFeatures,
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "hostname the browser would report")
	cmd.Flags().StringVar(&in, "in", "", "HTML file with placeholder tokens to rewrite instead of rendering the page")
	cmd.Flags().IntVar(&port, "port", sibling.DefaultPort, "port of the sibling service")
	cmd.Flags().StringVar(&scheme, "scheme", sibling.DefaultScheme, "scheme of the sibling service")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "log to stderr")
	return cmd
}
