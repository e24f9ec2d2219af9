package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaDDL drops and recreates the target tables. Enum types back the
// service_key and direction columns; BreadCrumb references Trip, which is why
// trips always load first.
const schemaDDL = `
DROP TABLE IF EXISTS BreadCrumb;
DROP TABLE IF EXISTS Trip;
DROP TYPE IF EXISTS service_type;
DROP TYPE IF EXISTS tripdir_type;

CREATE TYPE service_type AS ENUM ('Weekday', 'Saturday', 'Sunday');
CREATE TYPE tripdir_type AS ENUM ('Out', 'Back');

CREATE TABLE Trip (
    trip_id INTEGER PRIMARY KEY,
    route_id INTEGER,
    vehicle_id INTEGER,
    service_key service_type,
    direction tripdir_type
);

CREATE TABLE BreadCrumb (
    tstamp TIMESTAMP,
    latitude FLOAT,
    longitude FLOAT,
    speed FLOAT,
    trip_id INTEGER REFERENCES Trip
);
`

// EnsureSchema drops and recreates the Trip and BreadCrumb tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
