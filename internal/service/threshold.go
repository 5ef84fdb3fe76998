package service

// effectiveFloor resolves the similarity floor for one query.
// An explicit caller-supplied floor always wins. Otherwise the floor
// depends on why the search is being run: contextual searches (seeded by
// an existing analyzed file) should surface only close matches, while
// free-text queries are vaguer and get the more permissive default.
func effectiveFloor(explicit *float64, contextual bool, generalDefault, contextualDefault float64) float64 {
	if explicit != nil {
		return *explicit
	}
	if contextual {
		return contextualDefault
	}
	return generalDefault
}
