package constants

// Origin defaults. The store accepts any tag; these only name the values the
// original deployment used and the two reserved filter words.
const (
	OriginCentrales = "Centrales"
	OriginCampo     = "Campo"

	// OriginWildcard disables origin filtering in listings.
	OriginWildcard = "Todos"
	// OriginUnknown is displayed for entries without a bracketed tag.
	OriginUnknown = "Desconocido"
)
