package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/AitchEm-bot/audit-reports/internal/api"
	"github.com/AitchEm-bot/audit-reports/internal/common"
	"github.com/AitchEm-bot/audit-reports/internal/narrative"
	"github.com/AitchEm-bot/audit-reports/internal/report"
	"github.com/AitchEm-bot/audit-reports/internal/store"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn("auditreport: .env file not loaded", "error", err)
	} else {
		logger.Info("auditreport: environment loaded from .env")
	}

	addr := flag.String("addr", ":8084", "listen address")
	dbPath := flag.String("db", defaultDBPath(), "path to the audit SQLite database")
	flag.Parse()

	logger.Info("auditreport: startup initiated", "addr", *addr, "db", *dbPath)

	st, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("auditreport: store open failed", "error", err)
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer st.Close()

	client := narrative.NewClient()
	logger.Info("auditreport: narrative backend ready", "backend", client.Name())

	aggregator := report.NewAggregator(st)
	generator := narrative.NewGenerator(client, st)

	server, err := api.NewServer(aggregator, generator)
	if err != nil {
		logger.Error("auditreport: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("auditreport: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("auditreport: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("auditreport: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

func defaultDBPath() string {
	return filepath.Join("data", "audit.db")
}
