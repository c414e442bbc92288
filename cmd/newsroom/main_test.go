package main

import (
	"database/sql"
	"testing"
)

// db.New opens with driver name "postgres" and relies on this binary to
// register it.
func TestPostgresDriverRegistered(t *testing.T) {
	for _, name := range sql.Drivers() {
		if name == "postgres" {
			return
		}
	}
	t.Fatalf("postgres driver not registered; drivers = %v", sql.Drivers())
}
