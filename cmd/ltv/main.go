package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ltv/internal/config"
	"github.com/standardbeagle/ltv/internal/debug"
	"github.com/standardbeagle/ltv/internal/encoding"
	ltvmcp "github.com/standardbeagle/ltv/internal/mcp"
	"github.com/standardbeagle/ltv/internal/session"
	"github.com/standardbeagle/ltv/internal/version"
)

var Version = version.Version

// loadConfig loads configuration from the --config flag path.
func loadConfig(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Performance.SearchWorkers = workers
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "ltv",
		Usage:                  "Large text viewer engine: page, search and replace in multi-gigabyte files",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".ltv.toml",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Search worker count override (0 = all CPUs)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the viewer to a host UI over MCP stdio",
				Action: runServe,
			},
			{
				Name:      "view",
				Usage:     "Print a line range of a file",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "start", Aliases: []string{"s"}, Usage: "First line (0-based)"},
					&cli.IntFlag{Name: "end", Aliases: []string{"e"}, Value: 20, Usage: "End line (exclusive)"},
					&cli.StringFlag{Name: "encoding", Usage: "Encoding label"},
				},
				Action: runView,
			},
			{
				Name:      "search",
				Usage:     "Search a file and print matches",
				ArgsUsage: "<path> <query>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "regex", Aliases: []string{"r"}, Usage: "Treat query as a regular expression"},
					&cli.BoolFlag{Name: "case-sensitive", Aliases: []string{"C"}, Usage: "Match case exactly"},
					&cli.IntFlag{Name: "page", Value: 1, Usage: "Result page (1-based)"},
					&cli.IntFlag{Name: "page-size", Value: 100, Usage: "Matches per page"},
				},
				Action: runSearch,
			},
			{
				Name:      "replace",
				Usage:     "Replace text across a whole file",
				ArgsUsage: "<path> <query> <replacement>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "first-only", Usage: "Replace only the first occurrence"},
					&cli.BoolFlag{Name: "case-sensitive", Aliases: []string{"C"}, Usage: "Match case exactly"},
					&cli.StringFlag{Name: "encoding", Usage: "Encoding label"},
				},
				Action: runReplace,
			},
			{
				Name:      "detect",
				Usage:     "Detect a file's character encoding",
				ArgsUsage: "<path>",
				Action:    runDetect,
			},
			{
				Name:   "encodings",
				Usage:  "List supported encodings",
				Action: runEncodings,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// The MCP server owns stdio; nothing else may write there.
	debug.SetMCPMode(true)
	if logPath, err := debug.InitDebugLogFile(); err == nil {
		debug.Logf("ltv %s serving MCP (log: %s)", version.FullInfo(), logPath)
		defer debug.CloseDebugLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return ltvmcp.NewServer(cfg).Run(ctx)
}

func newViewer(c *cli.Context) (*session.Viewer, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return session.NewViewer(cfg), nil
}

// sniffLabel picks an encoding label for path from its leading bytes.
func sniffLabel(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 4096)
	n, _ := f.Read(head)
	return encoding.Sniff(head[:n]).Name()
}

func runView(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: ltv view <path>")
	}
	path := c.Args().Get(0)

	v, err := newViewer(c)
	if err != nil {
		return err
	}
	defer v.Close()

	label := c.String("encoding")
	if label == "" {
		label = sniffLabel(path)
	}

	lines, err := v.GetFileContent(path, c.Int("start"), c.Int("end"), label)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Print(line)
	}
	return nil
}

func runSearch(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: ltv search <path> <query>")
	}
	path := c.Args().Get(0)
	query := c.Args().Get(1)

	v, err := newViewer(c)
	if err != nil {
		return err
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	result, err := v.SearchFile(ctx, path, query, c.Bool("case-sensitive"), c.Bool("regex"),
		c.Int("page"), c.Int("page-size"))
	if err != nil {
		return err
	}

	fmt.Printf("%d matches\n", result.TotalMatches)
	for _, m := range result.Matches {
		fmt.Printf("%d:%d: %s\n", m.LineNumber, m.MatchStart, m.LineContent)
	}
	return nil
}

func runReplace(c *cli.Context) error {
	if c.NArg() < 3 {
		return fmt.Errorf("usage: ltv replace <path> <query> <replacement>")
	}
	path := c.Args().Get(0)

	v, err := newViewer(c)
	if err != nil {
		return err
	}
	defer v.Close()

	count, err := v.ReplaceText(path, c.Args().Get(1), c.Args().Get(2),
		!c.Bool("first-only"), c.Bool("case-sensitive"), c.String("encoding"))
	if err != nil {
		return err
	}
	fmt.Printf("replaced text in %d lines\n", count)
	return nil
}

func runDetect(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: ltv detect <path>")
	}

	v, err := newViewer(c)
	if err != nil {
		return err
	}
	defer v.Close()

	result, err := v.DetectEncoding(c.Args().Get(0))
	if err != nil {
		return err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runEncodings(c *cli.Context) error {
	v, err := newViewer(c)
	if err != nil {
		return err
	}
	defer v.Close()

	for _, opt := range v.AvailableEncodings() {
		fmt.Printf("%-14s %s\n", opt.Label, opt.Name)
	}
	return nil
}
