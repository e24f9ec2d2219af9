package db

import (
	"context"
	"database/sql"
	"fmt"

	"breadcrumb-etl/internal/breadcrumb"
)

// Table is the closed set of load targets. The string name arriving from
// configuration resolves to a variant exactly once; anything else is a fatal
// configuration error, not a per-row problem.
type Table int

const (
	// TableBoth loads Trip rows first and BreadCrumb rows second, keeping
	// the foreign key satisfiable within one call.
	TableBoth Table = iota
	TableTrip
	TableBreadCrumb
)

// ResolveTable maps a configured table name to its variant.
func ResolveTable(name string) (Table, error) {
	switch name {
	case "", "both":
		return TableBoth, nil
	case "trip":
		return TableTrip, nil
	case "breadcrumb":
		return TableBreadCrumb, nil
	default:
		return 0, fmt.Errorf("unknown table: %q (want trip, breadcrumb or both)", name)
	}
}

func (t Table) String() string {
	switch t {
	case TableTrip:
		return "trip"
	case TableBreadCrumb:
		return "breadcrumb"
	default:
		return "both"
	}
}

const (
	// Existing trips win: conflicting trip_id inserts are idempotent no-ops.
	insertTripSQL = `INSERT INTO Trip (trip_id, route_id, vehicle_id, service_key, direction)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (trip_id) DO NOTHING`

	insertBreadcrumbSQL = `INSERT INTO BreadCrumb (tstamp, latitude, longitude, speed, trip_id)
VALUES ($1, $2, $3, $4, $5)`
)

// Loader writes pipeline output into Postgres.
type Loader struct {
	db *sql.DB
}

func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// Load inserts the selected row sets in one transaction, trips strictly
// before breadcrumbs.
func (l *Loader) Load(ctx context.Context, target Table, trips []breadcrumb.TripRecord, rows []breadcrumb.BreadcrumbRow) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if target == TableBoth || target == TableTrip {
		if err := insertTrips(ctx, tx, trips); err != nil {
			return err
		}
	}
	if target == TableBoth || target == TableBreadCrumb {
		if err := insertBreadcrumbs(ctx, tx, rows); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertTrips(ctx context.Context, tx *sql.Tx, trips []breadcrumb.TripRecord) error {
	stmt, err := tx.PrepareContext(ctx, insertTripSQL)
	if err != nil {
		return fmt.Errorf("prepare trip insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trips {
		routeID := sql.NullInt64{}
		if t.RouteID != nil {
			routeID = sql.NullInt64{Int64: int64(*t.RouteID), Valid: true}
		}
		direction := sql.NullString{}
		if t.Direction != nil {
			direction = sql.NullString{String: string(*t.Direction), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, t.TripID, routeID, t.VehicleID, string(t.ServiceKey), direction); err != nil {
			return fmt.Errorf("insert trip %d: %w", t.TripID, err)
		}
	}
	return nil
}

func insertBreadcrumbs(ctx context.Context, tx *sql.Tx, rows []breadcrumb.BreadcrumbRow) error {
	stmt, err := tx.PrepareContext(ctx, insertBreadcrumbSQL)
	if err != nil {
		return fmt.Errorf("prepare breadcrumb insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.Latitude, r.Longitude, r.Speed, r.TripID); err != nil {
			return fmt.Errorf("insert breadcrumb for trip %d: %w", r.TripID, err)
		}
	}
	return nil
}
