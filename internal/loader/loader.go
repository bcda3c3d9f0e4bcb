package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmshape/internal/config"
	"github.com/wegman-software/osmshape/internal/logger"
	"github.com/wegman-software/osmshape/internal/rowwriter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stats holds loader statistics
type Stats struct {
	Tables     map[string]int64
	RowsLoaded int64
}

// Loader copies the CSV streams written by the shape command into PostgreSQL
type Loader struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	dropExisting  bool
	createIndexes bool
}

// NewLoader creates a new PostgreSQL loader
func NewLoader(ctx context.Context, cfg *config.Config, dropExisting, createIndexes bool) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Workers)
	if poolConfig.MaxConns < 1 {
		poolConfig.MaxConns = 1
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &Loader{
		cfg:           cfg,
		pool:          pool,
		dropExisting:  dropExisting,
		createIndexes: createIndexes,
	}, nil
}

// Close closes connections
func (l *Loader) Close() error {
	l.pool.Close()
	return nil
}

// Run loads every stream found in the configured output directory.
// Tables are loaded in parallel, one connection each.
func (l *Loader) Run(ctx context.Context) (*Stats, error) {
	log := logger.Get()

	if l.cfg.DBSchema != "public" {
		sql := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{l.cfg.DBSchema}.Sanitize())
		if _, err := l.pool.Exec(ctx, sql); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	counts := make([]int64, len(rowwriter.Streams))
	found := make([]bool, len(rowwriter.Streams))

	g, gctx := errgroup.WithContext(ctx)
	for i, stream := range rowwriter.Streams {
		path := rowwriter.CSVPath(l.cfg.OutputDir, stream)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Debug("Skipping table (no source file)", zap.String("table", stream))
			continue
		}
		found[i] = true

		i, stream := i, stream
		g.Go(func() error {
			log.Info("Loading table", zap.String("table", stream))
			count, err := l.loadTable(gctx, stream, path)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", stream, err)
			}
			counts[i] = count
			log.Info("Table loaded", zap.String("table", stream), zap.Int64("rows", count))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &Stats{Tables: make(map[string]int64)}
	for i, stream := range rowwriter.Streams {
		if !found[i] {
			continue
		}
		stats.Tables[stream] = counts[i]
		stats.RowsLoaded += counts[i]
	}

	if l.createIndexes && len(stats.Tables) > 0 {
		log.Info("Creating indexes", zap.Int("tables", len(stats.Tables)))
		if err := l.createTableIndexes(ctx, stats.Tables); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// loadTable creates the table for a stream and copies its CSV file into it
func (l *Loader) loadTable(ctx context.Context, stream, csvPath string) (int64, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	src, err := newCSVSource(f)
	if err != nil {
		return 0, err
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tableName := l.qualified(stream)

	if l.dropExisting {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", tableName)); err != nil {
			return 0, fmt.Errorf("failed to drop table: %w", err)
		}
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createTableSQL(tableName, src.columns)); err != nil {
		return 0, fmt.Errorf("failed to create table: %w", err)
	}
	if !l.dropExisting {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", tableName)); err != nil {
			return 0, fmt.Errorf("failed to truncate table: %w", err)
		}
	}

	names := make([]string, len(src.columns))
	for i, c := range src.columns {
		names[i] = c.name
	}

	count, err := tx.CopyFrom(ctx, l.identifier(stream), names, src)
	if err != nil {
		return 0, fmt.Errorf("COPY failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return count, nil
}

// createTableIndexes creates an index on the id column of every loaded table
func (l *Loader) createTableIndexes(ctx context.Context, tables map[string]int64) error {
	g, gctx := errgroup.WithContext(ctx)
	for stream := range tables {
		stream := stream
		g.Go(func() error {
			sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (id)",
				pgx.Identifier{stream + "_id_idx"}.Sanitize(), l.qualified(stream))
			if _, err := l.pool.Exec(gctx, sql); err != nil {
				return fmt.Errorf("failed to index %s: %w", stream, err)
			}
			if _, err := l.pool.Exec(gctx, fmt.Sprintf("ANALYZE %s", l.qualified(stream))); err != nil {
				return fmt.Errorf("failed to analyze %s: %w", stream, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) identifier(table string) pgx.Identifier {
	if l.cfg.DBSchema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{l.cfg.DBSchema, table}
}

func (l *Loader) qualified(table string) string {
	return l.identifier(table).Sanitize()
}

// column describes how a CSV column is stored
type column struct {
	name    string
	sqlType string
	parse   func(string) (interface{}, error)
}

func parseText(s string) (interface{}, error) {
	return s, nil
}

func parseBigInt(s string) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseInt(s string) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	return int32(n), err
}

func parseDouble(s string) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseTimestamp(s string) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	return time.Parse(time.RFC3339, s)
}

// columnFor maps a column name to its SQL type. Unknown columns are text.
func columnFor(name string) column {
	switch name {
	case "id", "node_id", "uid", "changeset":
		return column{name: name, sqlType: "BIGINT", parse: parseBigInt}
	case "version", "position":
		return column{name: name, sqlType: "INTEGER", parse: parseInt}
	case "lat", "lon":
		return column{name: name, sqlType: "DOUBLE PRECISION", parse: parseDouble}
	case "timestamp":
		return column{name: name, sqlType: "TIMESTAMPTZ", parse: parseTimestamp}
	default:
		return column{name: name, sqlType: "TEXT", parse: parseText}
	}
}

func createTableSQL(tableName string, columns []column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%s %s", pgx.Identifier{c.name}.Sanitize(), c.sqlType)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(defs, ", "))
}

// csvSource implements pgx.CopyFromSource over a CSV file with a header row
type csvSource struct {
	reader  *csv.Reader
	columns []column
	current []interface{}
	line    int
	err     error
}

func newCSVSource(r io.Reader) (*csvSource, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make([]column, len(header))
	for i, name := range header {
		columns[i] = columnFor(name)
	}

	return &csvSource{reader: cr, columns: columns, line: 1}, nil
}

func (s *csvSource) Next() bool {
	record, err := s.reader.Read()
	if err == io.EOF {
		return false
	}
	s.line++
	if err != nil {
		s.err = err
		return false
	}

	values := make([]interface{}, len(s.columns))
	for i, c := range s.columns {
		v, err := c.parse(record[i])
		if err != nil {
			s.err = fmt.Errorf("line %d column %s: %w", s.line, c.name, err)
			return false
		}
		values[i] = v
	}
	s.current = values
	return true
}

func (s *csvSource) Values() ([]interface{}, error) {
	return s.current, nil
}

func (s *csvSource) Err() error {
	return s.err
}
