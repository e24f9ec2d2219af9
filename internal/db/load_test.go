package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"breadcrumb-etl/internal/breadcrumb"
)

func TestResolveTable(t *testing.T) {
	cases := []struct {
		name string
		want Table
	}{
		{"", TableBoth},
		{"both", TableBoth},
		{"trip", TableTrip},
		{"breadcrumb", TableBreadCrumb},
	}
	for _, tc := range cases {
		got, err := ResolveTable(tc.name)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%q: table = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveTableUnknown(t *testing.T) {
	if _, err := ResolveTable("breadcrumbz"); err == nil {
		t.Fatal("expected error for unknown table name")
	}
}

func TestWithDBName(t *testing.T) {
	dsn, err := WithDBName("postgres://user@localhost:5432/postgres?sslmode=disable", "telemetry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "postgres://user@localhost:5432/telemetry?sslmode=disable"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}
}

func TestWithDBNameEmpty(t *testing.T) {
	if _, err := WithDBName("", "telemetry"); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

// recordingDriver is a database/sql driver that logs every executed
// statement so loader tests can assert on SQL construction and execution
// order without a live Postgres.
type recordingDriver struct{ log *execLog }

type execLog struct {
	mu    sync.Mutex
	execs []string
}

func (l *execLog) record(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.execs = append(l.execs, q)
}

func (l *execLog) statements() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.execs...)
}

func (d *recordingDriver) Open(string) (driver.Conn, error) {
	return &recordingConn{log: d.log}, nil
}

type recordingConn struct{ log *execLog }

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return &recordingStmt{log: c.log, query: query}, nil
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return recordingTx{}, nil }

type recordingTx struct{}

func (recordingTx) Commit() error   { return nil }
func (recordingTx) Rollback() error { return nil }

type recordingStmt struct {
	log   *execLog
	query string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }
func (s *recordingStmt) Exec([]driver.Value) (driver.Result, error) {
	s.log.record(s.query)
	return driver.RowsAffected(1), nil
}
func (s *recordingStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("queries not supported")
}

var loaderLog = &execLog{}

func init() {
	sql.Register("recording", &recordingDriver{log: loaderLog})
}

func openRecordingDB(t *testing.T) *sql.DB {
	t.Helper()
	loaderLog.mu.Lock()
	loaderLog.execs = nil
	loaderLog.mu.Unlock()

	sqlDB, err := sql.Open("recording", "")
	if err != nil {
		t.Fatalf("open recording db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func testTrips() []breadcrumb.TripRecord {
	return []breadcrumb.TripRecord{
		{TripID: 100, VehicleID: 4040, ServiceKey: breadcrumb.ServiceSaturday},
		{TripID: 200, VehicleID: 4041, ServiceKey: breadcrumb.ServiceWeekday},
	}
}

func testRows() []breadcrumb.BreadcrumbRow {
	ts := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)
	return []breadcrumb.BreadcrumbRow{
		{Timestamp: ts, Latitude: 45.5, Longitude: -122.5, Speed: 5, TripID: 100},
		{Timestamp: ts.Add(10 * time.Second), Latitude: 45.5, Longitude: -122.5, Speed: 7, TripID: 100},
		{Timestamp: ts, Latitude: 45.6, Longitude: -122.6, Speed: 0, TripID: 200},
	}
}

func TestLoaderTripsInsertBeforeBreadcrumbs(t *testing.T) {
	sqlDB := openRecordingDB(t)

	err := NewLoader(sqlDB).Load(context.Background(), TableBoth, testTrips(), testRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	execs := loaderLog.statements()
	if len(execs) != 5 {
		t.Fatalf("executed %d statements, want 5: %v", len(execs), execs)
	}

	lastTrip, firstCrumb := -1, -1
	for i, q := range execs {
		switch {
		case strings.Contains(q, "INSERT INTO Trip"):
			lastTrip = i
		case strings.Contains(q, "INSERT INTO BreadCrumb"):
			if firstCrumb == -1 {
				firstCrumb = i
			}
		default:
			t.Fatalf("unexpected statement: %q", q)
		}
	}
	if lastTrip == -1 || firstCrumb == -1 {
		t.Fatalf("missing inserts: %v", execs)
	}
	// Every Trip row must be persisted before the first BreadCrumb row so
	// the foreign key is satisfiable.
	if lastTrip > firstCrumb {
		t.Fatalf("trip insert at %d after first breadcrumb insert at %d", lastTrip, firstCrumb)
	}
}

func TestLoaderTripInsertIdempotent(t *testing.T) {
	sqlDB := openRecordingDB(t)

	err := NewLoader(sqlDB).Load(context.Background(), TableTrip, testTrips(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	execs := loaderLog.statements()
	if len(execs) != 2 {
		t.Fatalf("executed %d statements, want 2: %v", len(execs), execs)
	}
	for _, q := range execs {
		if !strings.Contains(q, "ON CONFLICT (trip_id) DO NOTHING") {
			t.Fatalf("trip insert is not idempotent: %q", q)
		}
	}
}

func TestLoaderSingleTableTargets(t *testing.T) {
	cases := []struct {
		target  Table
		want    string
		notWant string
	}{
		{TableTrip, "INSERT INTO Trip", "INSERT INTO BreadCrumb"},
		{TableBreadCrumb, "INSERT INTO BreadCrumb", "INSERT INTO Trip"},
	}
	for _, tc := range cases {
		t.Run(tc.target.String(), func(t *testing.T) {
			sqlDB := openRecordingDB(t)

			err := NewLoader(sqlDB).Load(context.Background(), tc.target, testTrips(), testRows())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, q := range loaderLog.statements() {
				if !strings.Contains(q, tc.want) {
					t.Fatalf("unexpected statement for %s: %q", tc.target, q)
				}
				if strings.Contains(q, tc.notWant) {
					t.Fatalf("statement for wrong table: %q", q)
				}
			}
			if len(loaderLog.statements()) == 0 {
				t.Fatal("no statements executed")
			}
		})
	}
}
