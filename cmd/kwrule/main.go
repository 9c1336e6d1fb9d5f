package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/valyala/fastjson"

	"github.com/coffersTech/kwrule/internal/cache"
	"github.com/coffersTech/kwrule/internal/compiler"
	"github.com/coffersTech/kwrule/internal/config"
	"github.com/coffersTech/kwrule/internal/pkg/rule"
	"github.com/coffersTech/kwrule/internal/server"
)

func main() {
	// Command-line flags
	expr := flag.String("expr", "", "Keyword expression to compile, e.g. '(网红 / 创作者) + 抖音'")
	formatStr := flag.String("format", "rule", "Output format: rule or query")
	precStr := flag.String("precedence", "", "Operator precedence: and_outer or and_tighter (default and_outer for rule, and_tighter for query)")
	locationsStr := flag.String("locations", "", `Based-location filter as a JSON array, e.g. '[{"city":"上海市"}]'`)
	tagsStr := flag.String("tags", "", "Comma-separated tag filter")
	serve := flag.Bool("serve", false, "Run the HTTP adapter instead of compiling once")
	port := flag.Int("port", 8089, "HTTP port to listen on")
	tokenHash := flag.String("token-hash", os.Getenv("KWRULE_TOKEN_HASH"), "bcrypt hash of the API bearer token (empty disables auth)")
	cacheTTLStr := flag.String("cache-ttl", "10m", "How long unused compilations stay cached")
	flag.Parse()

	cfg := config.Default()
	prec, err := config.ParsePrecedence(*precStr)
	if err != nil {
		log.Fatalf("Invalid precedence: %v", err)
	}
	cfg.Precedence = prec

	if *serve {
		cacheTTL, err := time.ParseDuration(*cacheTTLStr)
		if err != nil {
			log.Fatalf("Invalid cache TTL: %v", err)
		}
		runServer(cfg, *port, *tokenHash, cacheTTL)
		return
	}

	var out interface{}
	if *locationsStr != "" || *tagsStr != "" {
		out, err = composeRule(cfg, *formatStr, *expr, *locationsStr, *tagsStr)
	} else {
		out, err = compileOnce(cfg, *formatStr, *expr)
	}
	if err != nil {
		reportError(*expr, err)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("JSON encode error: %v", err)
	}
}

func compileOnce(cfg config.Config, formatStr, expr string) (interface{}, error) {
	format, err := compiler.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}
	c, err := compiler.New(cfg, format)
	if err != nil {
		return nil, err
	}
	return c.Compile(expr)
}

func composeRule(cfg config.Config, formatStr, expr, locationsStr, tagsStr string) (interface{}, error) {
	format, err := compiler.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}
	if format != compiler.FormatRule {
		return nil, fmt.Errorf("-locations and -tags require -format rule, got %v", format)
	}

	var text *rule.Rule
	if expr != "" {
		r, err := rule.NewKeywordRuleParser(cfg).Parse(expr)
		if err != nil {
			return nil, err
		}
		text = &r
	}

	var preds []rule.Node
	if locationsStr != "" {
		v, err := fastjson.Parse(locationsStr)
		if err != nil {
			return nil, fmt.Errorf("invalid -locations: %w", err)
		}
		locations, err := server.LocationsFrom(v)
		if err != nil {
			return nil, fmt.Errorf("invalid -locations: %w", err)
		}
		if len(locations) > 0 {
			preds = append(preds, rule.NewBasedLocationParser(cfg).ParseMultiple(locations))
		}
	}
	if tags := splitTags(tagsStr); len(tags) > 0 {
		preds = append(preds, rule.NewTagsParser(cfg).Parse(tags))
	}

	return rule.Compose(text, preds...)
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// reportError prints the expression with a caret under the failing position.
func reportError(expr string, err error) {
	if pos, ok := compiler.Position(err); ok && expr != "" {
		if pos > len(expr) {
			pos = len(expr)
		}
		fmt.Fprintf(os.Stderr, "%s\n%s^\n", expr, strings.Repeat("-", runewidth.StringWidth(expr[:pos])))
	}
	fmt.Fprintf(os.Stderr, "ERR: %v\n", err)
}

func runServer(cfg config.Config, port int, tokenHash string, cacheTTL time.Duration) {
	log.Println("kwrule compile server starting...")

	store := cache.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.StartCleanupLoop(ctx, time.Minute, cacheTTL)

	srv, err := server.NewCompileServer(server.Options{
		Config:    cfg,
		TokenHash: tokenHash,
		Cache:     store,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if tokenHash == "" {
		log.Println("No token hash configured, API is unauthenticated")
	}

	addr := fmt.Sprintf(":%d", port)
	go func() {
		log.Printf("Listening on %s (precedence %v, cache TTL %v)", addr, cfg.Precedence, cacheTTL)
		if err := srv.Start(addr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown Hook
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal: %v. Shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("kwrule exited gracefully.")
}
