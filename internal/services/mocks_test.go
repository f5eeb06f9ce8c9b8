package services

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/geoload/pkg/geoload"
)

type mockConnector struct {
	pool *pgxpool.Pool
	err  error
}

func (m *mockConnector) Connect(_ context.Context) (*pgxpool.Pool, error) {
	return m.pool, m.err
}

type mockApprover struct {
	approved bool
	err      error
	called   bool
	table    geoload.TableRef
	count    int
}

func (m *mockApprover) RequestApproval(_ context.Context, table geoload.TableRef, featureCount int) (bool, error) {
	m.called = true
	m.table = table
	m.count = featureCount
	return m.approved, m.err
}

type mockLoader struct {
	ds     *geoload.Dataset
	err    error
	called bool
	opts   geoload.ReadOptions
}

func (m *mockLoader) Load(_ context.Context, _ string, opts geoload.ReadOptions) (*geoload.Dataset, error) {
	m.called = true
	m.opts = opts
	return m.ds, m.err
}

type mockSanitizer struct {
	err error
}

func (m *mockSanitizer) Sanitize(ds *geoload.Dataset) (*geoload.Dataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	return ds, nil
}

type mockValidator struct {
	plan   *geoload.LoadPlan
	err    error
	called bool
	opts   geoload.ValidateOptions
}

func (m *mockValidator) Validate(_ context.Context, _ geoload.DB, _ *geoload.Dataset, table geoload.TableRef, opts geoload.ValidateOptions) (*geoload.LoadPlan, error) {
	m.called = true
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.plan != nil {
		return m.plan, nil
	}
	return &geoload.LoadPlan{Table: table, GeometryColumn: "geom", BatchSize: geoload.DefaultBatchSize}, nil
}

type mockWriter struct {
	rows   int64
	err    error
	called bool
	plan   *geoload.LoadPlan
}

func (m *mockWriter) Replace(_ context.Context, _ geoload.DB, plan *geoload.LoadPlan, _ *geoload.Dataset) (int64, error) {
	m.called = true
	m.plan = plan
	return m.rows, m.err
}

type mockLogger struct{}

func (m *mockLogger) Verbose(_ string, _ ...interface{}) {}
func (m *mockLogger) Info(_ string, _ ...interface{})    {}
func (m *mockLogger) Error(_ string, _ ...interface{})   {}
