package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// ConnectorFactory creates a Connector for a resolved connection config.
type ConnectorFactory func(*geoload.ConnectionConfig) (geoload.Connector, error)

type connectFunc func(ctx context.Context, connConfig *geoload.ConnectionConfig) (geoload.DB, func(), error)

// LoadService runs the load pipeline: read, sanitize, validate, confirm, replace.
// Thread-Safety: NOT safe for concurrent Run() calls on the same instance.
type LoadService struct {
	connectorFactory ConnectorFactory
	approver         geoload.Approver
	logger           geoload.Logger
	loader           geoload.DatasetLoader
	sanitizer        geoload.Sanitizer
	validator        geoload.SchemaValidator
	writer           geoload.TableWriter
	connect          connectFunc
}

// NewLoadService creates a LoadService with all dependencies injected.
// Nil dependencies are programmer errors and panic at construction time.
func NewLoadService(
	connectorFactory ConnectorFactory,
	approver geoload.Approver,
	logger geoload.Logger,
	loader geoload.DatasetLoader,
	sanitizer geoload.Sanitizer,
	validator geoload.SchemaValidator,
	writer geoload.TableWriter,
) *LoadService {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if approver == nil {
		panic("approver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if loader == nil {
		panic("loader cannot be nil")
	}
	if sanitizer == nil {
		panic("sanitizer cannot be nil")
	}
	if validator == nil {
		panic("validator cannot be nil")
	}
	if writer == nil {
		panic("writer cannot be nil")
	}

	svc := &LoadService{
		connectorFactory: connectorFactory,
		approver:         approver,
		logger:           logger,
		loader:           loader,
		sanitizer:        sanitizer,
		validator:        validator,
		writer:           writer,
	}
	svc.connect = svc.defaultConnect
	return svc
}

func (s *LoadService) defaultConnect(ctx context.Context, connConfig *geoload.ConnectionConfig) (geoload.DB, func(), error) {
	connector, err := s.connectorFactory(connConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connector: %w", err)
	}

	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// Inspect reads and sanitizes a file without touching the database.
func (s *LoadService) Inspect(ctx context.Context, path string, opts geoload.ReadOptions) (*geoload.Dataset, error) {
	raw, err := s.loader.Load(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Verbose("Read %d features from %s (%s, SRID %d)", len(raw.Records), path, raw.Format, raw.SRID)

	ds, err := s.sanitizer.Sanitize(raw)
	if err != nil {
		return nil, err
	}
	for i, c := range ds.Columns {
		if i < len(raw.Columns) && raw.Columns[i].Name != c.Name {
			s.logger.Verbose("Column %q renamed to %q", raw.Columns[i].Name, c.Name)
		}
	}
	return ds, nil
}

// Run replaces the contents of config.Table with the features of config.FilePath.
// The input is fully read and sanitized before a connection is opened, so a bad
// file never reaches the database. With DryRun the run stops after validation.
func (s *LoadService) Run(ctx context.Context, config geoload.JobConfig) (*geoload.LoadResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	s.logger.Verbose("Run %s: loading %s into %s", runID, config.FilePath, config.Table)

	ds, err := s.Inspect(ctx, config.FilePath, config.Read)
	if err != nil {
		return nil, err
	}

	conn, closeConn, err := s.connect(ctx, sessionConfig(config.Connection, runID))
	if err != nil {
		return nil, err
	}
	defer closeConn()

	plan, err := s.validator.Validate(ctx, conn, ds, config.Table, geoload.ValidateOptions{
		GeometryColumn: config.GeometryColumn,
		GenerateIDs:    config.GenerateIDs,
		Cascade:        config.Cascade,
		BatchSize:      config.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	plan.LockTimeout = config.LockTimeout
	s.logPlan(plan, ds)

	result := &geoload.LoadResult{
		Table:  plan.Table,
		Plan:   plan,
		DryRun: config.DryRun,
		RunID:  runID,
	}

	if config.DryRun {
		result.Duration = time.Since(start)
		s.logger.Info("✓ Dry run: %d features fit %s; table not modified", len(ds.Records), plan.Table)
		return result, nil
	}

	approved, err := s.approver.RequestApproval(ctx, plan.Table, len(ds.Records))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("approval failed: %w", err)
	}
	if !approved {
		return nil, fmt.Errorf("replacement of %s was not confirmed: %w", plan.Table, geoload.ErrApprovalDenied)
	}

	rows, err := s.writer.Replace(ctx, conn, plan, ds)
	if err != nil {
		return nil, err
	}

	result.RowsInserted = rows
	result.Duration = time.Since(start)
	s.logger.Info("✓ Replaced %s with %d rows in %s", plan.Table, rows, result.Duration.Round(time.Millisecond))
	return result, nil
}

func (s *LoadService) logPlan(plan *geoload.LoadPlan, ds *geoload.Dataset) {
	cols := make([]string, len(plan.Columns))
	for i, c := range plan.Columns {
		cols[i] = c.Column
	}
	s.logger.Verbose("Plan for %s: columns [%s], geometry %q", plan.Table, strings.Join(cols, ", "), plan.GeometryColumn)
	if plan.Transform {
		s.logger.Verbose("Reprojecting SRID %d -> %d", plan.SourceSRID, plan.TargetSRID)
	}
	if plan.PromoteToMulti {
		s.logger.Verbose("Promoting %s geometries to multi", ds.GeometryType)
	}
	if plan.GeneratedIDColumn != "" {
		s.logger.Verbose("Generating %q values 1..%d", plan.GeneratedIDColumn, len(ds.Records))
	}
}

// sessionConfig tags the connection's application_name with the run id so the
// session can be found in pg_stat_activity.
func sessionConfig(connConfig *geoload.ConnectionConfig, runID string) *geoload.ConnectionConfig {
	cfg := *connConfig
	appName := cfg.AppName
	if appName == "" {
		appName = geoload.ApplicationName
	}
	cfg.AppName = appName + "/" + runID[:8]
	return &cfg
}
