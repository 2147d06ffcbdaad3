package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

// schema is written once with placeholder column types that are swapped per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		id                {uuid} PRIMARY KEY,
		plate_number      TEXT NOT NULL DEFAULT '',
		engine_number     TEXT NOT NULL DEFAULT '',
		chassis_number    TEXT NOT NULL DEFAULT '',
		vin               TEXT NOT NULL DEFAULT '',
		make              TEXT NOT NULL DEFAULT '',
		model             TEXT NOT NULL DEFAULT '',
		year              TEXT NOT NULL DEFAULT '',
		color             TEXT NOT NULL DEFAULT '',
		owner_name        TEXT NOT NULL DEFAULT '',
		owner_email       TEXT NOT NULL DEFAULT '',
		registration_type TEXT NOT NULL DEFAULT '',
		origin_type       TEXT NOT NULL DEFAULT '',
		purpose           TEXT NOT NULL DEFAULT '',
		policy_number     TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		created_at        {ts} NOT NULL,
		updated_at        {ts} NOT NULL,
		submission_attempted_at {ts} NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_status ON vehicles (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id                {uuid} PRIMARY KEY,
		vehicle_id        {uuid} NULL REFERENCES vehicles (id) ON DELETE CASCADE,
		document_type     TEXT NOT NULL,
		storage_path      TEXT NOT NULL,
		mime_type         TEXT NOT NULL DEFAULT '',
		original_filename TEXT NOT NULL DEFAULT '',
		uploaded_at       {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_vehicle ON documents (vehicle_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents (uploaded_at)`,
	`CREATE TABLE IF NOT EXISTS verifications (
		vehicle_id  {uuid} NOT NULL REFERENCES vehicles (id) ON DELETE CASCADE,
		category    TEXT NOT NULL,
		status      TEXT NOT NULL,
		verified_by TEXT NULL,
		note        TEXT NOT NULL DEFAULT '',
		metadata    {json} NULL,
		updated_at  {ts} NOT NULL,
		PRIMARY KEY (vehicle_id, category)
	)`,
	`CREATE TABLE IF NOT EXISTS verification_events (
		id          {uuid} PRIMARY KEY,
		vehicle_id  {uuid} NOT NULL REFERENCES vehicles (id) ON DELETE CASCADE,
		category    TEXT NOT NULL,
		status      TEXT NOT NULL,
		verified_by TEXT NULL,
		note        TEXT NOT NULL DEFAULT '',
		metadata    {json} NULL,
		created_at  {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verification_events_pair ON verification_events (vehicle_id, category, created_at)`,
	`CREATE TABLE IF NOT EXISTS clearance_requests (
		id           {uuid} PRIMARY KEY,
		vehicle_id   {uuid} NOT NULL REFERENCES vehicles (id) ON DELETE CASCADE,
		request_type TEXT NOT NULL,
		status       TEXT NOT NULL,
		assigned_to  {uuid} NULL,
		requested_by TEXT NOT NULL DEFAULT '',
		purpose      TEXT NOT NULL DEFAULT '',
		notes        TEXT NOT NULL DEFAULT '',
		document_ids {json} NULL,
		metadata     {json} NULL,
		created_at   {ts} NOT NULL,
		updated_at   {ts} NOT NULL
	)`,
	// at most one open request per (vehicle, type)
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_clearance_requests_open
		ON clearance_requests (vehicle_id, request_type)
		WHERE status NOT IN ('REJECTED', 'COMPLETED')`,
	`CREATE TABLE IF NOT EXISTS users (
		id           {uuid} PRIMARY KEY,
		email        TEXT NOT NULL UNIQUE,
		name         TEXT NOT NULL DEFAULT '',
		role         TEXT NOT NULL,
		organization TEXT NOT NULL DEFAULT '',
		active       BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role ON users (role, organization)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         {uuid} PRIMARY KEY,
		user_id    {uuid} NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		severity   TEXT NOT NULL,
		read       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vehicle_history (
		id           {uuid} PRIMARY KEY,
		vehicle_id   {uuid} NOT NULL REFERENCES vehicles (id) ON DELETE CASCADE,
		action       TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		performed_by TEXT NOT NULL DEFAULT '',
		metadata     {json} NULL,
		created_at   {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_history_vehicle ON vehicle_history (vehicle_id, created_at)`,
	// read by registry.PostgresSource; kind is 'problem' or 'valid'
	`CREATE TABLE IF NOT EXISTS registry_records (
		id             {uuid} PRIMARY KEY,
		registry       TEXT NOT NULL,
		kind           TEXT NOT NULL,
		plate_number   TEXT NOT NULL DEFAULT '',
		policy_number  TEXT NOT NULL DEFAULT '',
		engine_number  TEXT NOT NULL DEFAULT '',
		chassis_number TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT '',
		owner_name     TEXT NOT NULL DEFAULT '',
		provider       TEXT NOT NULL DEFAULT '',
		expires_on     DATE NULL,
		updated_at     {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_registry_records_lookup ON registry_records (registry, kind, plate_number)`,
}

func schemaFor(d string) []string {
	r := strings.NewReplacer("{uuid}", "UUID", "{ts}", "TIMESTAMPTZ", "{json}", "JSONB")
	if d == dialect.SQLite {
		r = strings.NewReplacer("{uuid}", "TEXT", "{ts}", "DATETIME", "{json}", "TEXT")
	}
	out := make([]string, len(schema))
	for i, stmt := range schema {
		out[i] = r.Replace(stmt)
	}
	return out
}

// Migrate creates every table and index the store uses. It is idempotent.
func (d *SQLStore) Migrate(ctx context.Context) error {
	d.logger.Info("running migrations", "dialect", d.dialect)
	for i, stmt := range schemaFor(d.dialect) {
		if _, err := d.exec(ctx, stmt, []any{}); err != nil {
			d.logger.Error("failed to run migration", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	d.logger.Info("migrations complete")
	return nil
}
