// Package main provides the stdio MCP entry point. It requires no external
// services; the directory backend keeps its SQLite file in the data dir.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/injury-assessment-server/internal/config"
	"github.com/injury-assessment-server/internal/mcp"
)

func main() {
	cfg := config.LoadLiteConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := mcp.NewToolServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}
}
