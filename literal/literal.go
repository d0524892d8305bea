// Package literal provides ready-made self-rendering values for use with
// the resolver: fragments embedded verbatim and identifier types with a
// canonical string form.
package literal

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/canonical/sqlprep/dialect"
)

// Raw embeds a fragment of SQL verbatim, bypassing quoting entirely. The
// caller is responsible for the fragment being safe: Raw exists for trusted
// SQL such as function calls and keywords, never for user input.
type Raw string

// RenderLiteral implements dialect.Renderer.
func (r Raw) RenderLiteral(ctx dialect.Context) (string, error) {
	return string(r), nil
}

// UUID renders a UUID in its canonical 8-4-4-4-12 form, quoted for the
// active dialect.
type UUID uuid.UUID

// RenderLiteral implements dialect.Renderer.
func (u UUID) RenderLiteral(ctx dialect.Context) (string, error) {
	return ctx.Quoter.Quote(uuid.UUID(u).String())
}

// ULID renders a ULID in its canonical 26-character Crockford base32 form,
// quoted for the active dialect.
type ULID ulid.ULID

// RenderLiteral implements dialect.Renderer.
func (u ULID) RenderLiteral(ctx dialect.Context) (string, error) {
	return ctx.Quoter.Quote(ulid.ULID(u).String())
}
