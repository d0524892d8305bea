/*
Package sqlprep rewrites templated SQL statements into fully literal SQL.

A template contains positional (?) and named (:name) placeholder sites.
Resolving a template substitutes each site with the correctly quoted and
escaped literal spelling of its bound value, so the resulting string can be
sent to the database as is, with no remaining parameters. Equality and
IN(...) clauses around a site adapt to the shape of the bound value.

# Basics

A Resolver is built for one SQL dialect and one Literal Quoter:

	r := sqlprep.New(dialect.Postgres, nil)

Positional values are consumed in order by ? sites, named values are looked
up by :name sites:

	stmt, err := r.Resolve("SELECT * FROM person WHERE team = ? AND age > ?", sqlprep.S{"engineering", 30})
	// SELECT * FROM person WHERE team = 'engineering' AND age > 30

	stmt, err = r.Resolve("UPDATE person SET name = :name WHERE id = :id", sqlprep.M{"name": "Fred", "id": 7})
	// UPDATE person SET name = 'Fred' WHERE id = 7

A single scalar stands for a one element sequence, and resolving with nil
values returns the template unchanged.

# Collections

A collection bound to an equality or IN site upgrades the clause to fit the
number of elements:

	r.Resolve("id IN(?)", sqlprep.S{[]int{4, 5, 6}})  // id IN(4, 5, 6)
	r.Resolve("id IN(?)", sqlprep.S{[]int{7}})        // id = 7
	r.Resolve("id IN(?)", sqlprep.S{[]int{}})         // id = NULL
	r.Resolve("id = ?", sqlprep.S{[]int{4, 5, 6}})    // id IN(4, 5, 6)
	r.Resolve("id != ?", sqlprep.S{[]int{4, 5, 6}})   // id NOT IN(4, 5, 6)

A nil value collapses the comparison to = NULL or != NULL in the same way.

# Literals

Integers are spelled as bare digits and booleans follow the dialect:
true/false on Postgres, 1/0 elsewhere. Strings, floats and times travel
through the dialect's Literal Quoter, which escapes and quotes them. Byte
slices become hexadecimal literals. A value implementing dialect.Renderer
spells its own literal; the literal package provides ready-made renderers.

# Execution

DB wraps a database/sql handle with a Resolver, resolving every statement
before it reaches the driver:

	db := sqlprep.NewDB(sqldb, r)
	res, err := db.Exec(ctx, "DELETE FROM person WHERE id IN(?)", sqlprep.S{[]int{1, 2}})

Statements failing on a dropped connection are resubmitted once. Middleware
added with DB.Use observes every execution.
*/
package sqlprep
