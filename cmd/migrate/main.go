package main

import (
	"bufio"
	"database/sql"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"openvault/internal/config"
	"openvault/internal/db"
	"openvault/internal/logging"

	"go.uber.org/zap"
)

const downMarker = "-- +migrate Down"

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	flag.Parse()

	cfg := config.Load()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		logger.Fatal("failed to ensure schema_migrations", zap.Error(err))
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		logger.Fatal("failed to read migrations", zap.Error(err))
	}
	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			logger.Fatal("failed to read migration state", zap.Error(err))
		}
		if exists {
			logger.Debug("skipping applied migration", zap.String("file", filename))
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal("failed to read migration", zap.String("file", filename), zap.Error(err))
		}
		if err := applyUp(database, string(content)); err != nil {
			logger.Fatal("failed to apply migration", zap.String("file", filename), zap.Error(err))
		}
		if _, err := database.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			logger.Fatal("failed to record migration", zap.String("file", filename), zap.Error(err))
		}
		logger.Info("applied migration", zap.String("file", filename))
	}
}

// applyUp runs every statement above the Down marker.
func applyUp(db execer, content string) error {
	up, _, _ := strings.Cut(content, downMarker)
	for _, stmt := range splitSQL(up) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitSQL breaks a script on lines ending a statement. Comment lines are
// dropped; dollar-quoted bodies are not supported.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}
