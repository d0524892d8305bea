package demo

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/sqlprep"
	"github.com/canonical/sqlprep/dialect"
)

func example() error {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	db := sqlprep.NewDB(sqldb, sqlprep.New(dialect.SQLite, nil))
	defer db.Close()

	// Count the statements that actually reach the driver.
	var executed int
	db.Use(sqlprep.TimingMiddleware(func(e sqlprep.QueryEvent) {
		executed++
	}))

	ctx := context.Background()
	_, err = db.Exec(ctx, `
		CREATE TABLE people (
			name text,
			height_cm integer,
			home_town text
		)`, nil)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		CREATE TABLE location (
			town_name text,
			population integer
		)`, nil)
	if err != nil {
		return err
	}

	_, err = db.Insert("people", "name", "height_cm", "home_town").
		Row("Jim", 150, "Kabul").
		Row("Saba", 162, "Berlin").
		Row("Dave", 169, "Brasília").
		Row("Sophie", 174, "Berlin").
		Row("Kiri", 168, "Cape Town").
		Exec(ctx)
	if err != nil {
		return err
	}
	_, err = db.Insert("location", "town_name", "population").
		Row("Kabul", 13000000).
		Row("Berlin", 3677472).
		Row("Brasília", 3039444).
		Row("Cape Town", 4710000).
		Exec(ctx)
	if err != nil {
		return err
	}

	// Find people taller than Jim.
	rows, err := db.Query(ctx, `
		SELECT name FROM people
		WHERE height_cm > :height
		ORDER BY height_cm`, sqlprep.M{"height": 150})
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		fmt.Printf("%s is taller than Jim.\n", name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Find the towns they live in. The single placeholder takes the whole
	// list and resolves to an IN clause.
	towns := []string{"Berlin", "Brasília", "Cape Town"}
	rows, err = db.Query(ctx, `
		SELECT town_name, population FROM location
		WHERE town_name = ?
		ORDER BY population`, sqlprep.S{towns})
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var town string
		var population int
		if err := rows.Scan(&town, &population); err != nil {
			return err
		}
		fmt.Printf("%s has %d inhabitants.\n", town, population)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Printf("Ran %d statements.\n", executed)
	return nil
}

func main() {
	err := example()
	if err != nil {
		panic(err)
	}
}
