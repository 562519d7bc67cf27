// Command blogmirror archives a blog-like website as Markdown documents
// with local media copies.
package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netjoints/blogmirror/config"
	"github.com/netjoints/blogmirror/migrate"
)

var (
	outDir      string
	configPath  string
	concurrency int
	maxPages    int
	resume      bool
	dryRun      bool

	// usageOK flips once arguments validate; errors before that exit 2.
	usageOK bool
)

var rootCmd = &cobra.Command{
	Use:   "blogmirror <site-url>",
	Short: "Archive a blog as Markdown with local media",
	Long: `blogmirror discovers every post of a publicly reachable blog via its
sitemap, feed, and archive pages, extracts each post, downloads its media,
and writes one self-contained Markdown document per post plus an index.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		siteURL, err := normalizeSiteURL(args[0])
		if err != nil {
			return err
		}
		usageOK = true

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		runner, err := migrate.NewRunner(siteURL, cfg, migrate.Options{
			OutDir:          outDir,
			Resume:          resume,
			DryRun:          dryRun,
			Concurrency:     concurrency,
			MaxArchivePages: maxPages,
		})
		if err != nil {
			return err
		}
		defer runner.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Archived %d of %d posts (%d failed, %d skipped) to %s\n",
			summary.Archived, summary.Discovered, summary.Failed(),
			summary.Skipped, outDir)
		return nil
	},
}

// normalizeSiteURL accepts bare hostnames and returns a full URL.
func normalizeSiteURL(raw string) (string, error) {
	if !hasScheme(raw) {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid site URL %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

func hasScheme(raw string) bool {
	for i, r := range raw {
		if r == ':' {
			return i > 0
		}
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return false
}

func init() {
	rootCmd.Flags().StringVar(&outDir, "out", "blog_backup", "Output directory")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker count (overrides config)")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Archive pagination bound per root (overrides config)")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "Skip posts already archived in a previous run")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List discovered posts without archiving")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		if !usageOK {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
