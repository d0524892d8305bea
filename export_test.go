package sqlprep

import (
	"github.com/canonical/sqlprep/internal/resolve"
)

var (
	NormalizeValues = normalizeValues
	NoValues        = noValues
)

type ValueSet = resolve.ValueSet

func CacheLen(r *Resolver) int {
	return r.cache.len()
}
