package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"milesync/internal"
	"milesync/internal/auth"
	"milesync/internal/backend"
	"milesync/internal/config"
	"milesync/internal/extractor"
	"milesync/internal/history"
	"milesync/internal/popup"
	"milesync/internal/programs"
	"milesync/internal/server"
	"milesync/internal/statement"
	"milesync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	registry, err := loadRegistry(cfg)
	must(err)
	scorer := extractor.NewScorer(cfg.Weights)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "programs":
		for _, p := range registry.All() {
			click := ""
			if p.RequiresClick {
				click = " (requires click)"
			}
			fmt.Printf("%-8s %-7s %-12s %s%s\n", p.Code, p.Key, p.Name, strings.Join(p.Hosts, ","), click)
		}
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		url := fs.String("url", "", "page url to fetch")
		file := fs.String("file", "", "saved html page")
		key := fs.String("program", "", "program key (default: detected from --url)")
		_ = fs.Parse(os.Args[2:])
		source, program := resolveSource(registry, *url, *file, *key)
		page, err := extractor.NewFetcher(cfg).Load(ctx, source, *program)
		must(err)
		printJSON(scorer.Extract(page, *program))
	case "statement":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", ".eml, .pdf or .html statement")
		key := fs.String("program", "", "program key")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" || strings.TrimSpace(*key) == "" {
			must(fmt.Errorf("--file and --program are required"))
		}
		program := registry.ByKey(*key)
		if program == nil {
			must(fmt.Errorf("unknown program: %s", *key))
		}
		res, err := statement.New(scorer).FromFile(*file, *program)
		must(err)
		printJSON(res)
	case "sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		url := fs.String("url", "", "page url")
		file := fs.String("file", "", "saved html page")
		key := fs.String("program", "", "program key (default: detected from --url)")
		token := fs.String("token", cfg.BackendToken, "access token used when login is required")
		_ = fs.Parse(os.Args[2:])
		source, program := resolveSource(registry, *url, *file, *key)
		tabURL := *url
		if tabURL == "" {
			tabURL = program.MilesURL
		}
		must(checkTabProgram(registry, tabURL, program))

		client := backend.NewHTTPClient(cfg, logger)
		tab := &pageTab{url: tabURL, source: source, fetcher: extractor.NewFetcher(cfg), scorer: scorer, out: os.Stdout}
		view := &terminalView{out: os.Stdout}
		ctrl := popup.NewController(client, tab, view, registry, logger)
		p := &prompter{in: bufio.NewScanner(os.Stdin), out: os.Stdout}
		must(runSync(ctx, ctrl, view, p, *token))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "history.xlsx"), "output xlsx path")
		clientID := fs.String("client", "", "only this client id")
		limit := fs.Int("limit", 1000, "max rows")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		rows, err := db.ListSyncs(*clientID, *limit)
		must(err)
		must(history.ExportSyncsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "token":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		clientID := fs.String("client", cfg.BackendClientID, "client id the token is bound to")
		ttl := fs.Duration("ttl", time.Duration(cfg.SessionTTLHours)*time.Hour, "token lifetime")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Require("AUTH_SECRET", cfg.AuthSecret))
		tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.AuthIssuer)
		must(err)
		tok, err := tokens.Issue(*clientID, *ttl)
		must(err)
		fmt.Println(tok)
	case "serve":
		must(cfg.Require("AUTH_SECRET", cfg.AuthSecret))
		tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.AuthIssuer)
		must(err)
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		router := server.SetupRouter(cfg, server.NewHandler(db, registry, tokens, cfg, logger))
		must(server.Run(ctx, cfg.ServerAddr, router, logger))
	default:
		usage()
		os.Exit(1)
	}
}

func loadRegistry(cfg config.Config) (*programs.Registry, error) {
	if strings.TrimSpace(cfg.ProgramsFile) == "" {
		return programs.Default(), nil
	}
	return programs.LoadFile(cfg.ProgramsFile)
}

// resolveSource picks the page source and the program whose rules apply.
func resolveSource(registry *programs.Registry, url, file, key string) (string, *internal.Program) {
	source := strings.TrimSpace(url)
	if strings.TrimSpace(file) != "" {
		source = file
	}
	if source == "" {
		must(fmt.Errorf("--url or --file is required"))
	}

	var program *internal.Program
	if strings.TrimSpace(key) != "" {
		program = registry.ByKey(key)
	} else if url != "" {
		program = registry.Lookup(url)
	}
	if program == nil {
		must(fmt.Errorf("no supported program for this page, pass --program"))
	}
	return source, program
}

// checkTabProgram rejects a --program that disagrees with the program the
// popup will detect from the tab url.
func checkTabProgram(registry *programs.Registry, tabURL string, program *internal.Program) error {
	detected := registry.Lookup(tabURL)
	if detected == nil {
		return fmt.Errorf("%s is not a supported loyalty program page", tabURL)
	}
	if detected.Key != program.Key {
		return fmt.Errorf("--program=%s does not match %s, which belongs to %s", program.Key, tabURL, detected.Key)
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func usage() {
	fmt.Println("usage: milesync <command>")
	fmt.Println("commands:")
	fmt.Println("  programs")
	fmt.Println("  extract --url=https://... | --file=page.html [--program=latam]")
	fmt.Println("  statement --file=statement.eml|.pdf|.html --program=livelo")
	fmt.Println("  sync --url=https://... | --file=page.html [--program=latam] [--token=...]")
	fmt.Println("  token [--client=...] [--ttl=720h]")
	fmt.Println("  export:xlsx [--out=./out/history.xlsx] [--client=...] [--limit=1000]")
	fmt.Println("  serve")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
