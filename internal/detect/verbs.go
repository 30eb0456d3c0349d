package detect

import "strings"

// PastTenseCompletionVerbs lists spinner verbs that actually signal the
// agent just finished (e.g. "Cooked for 3m"), so a content-spinner hit
// on one of these should downgrade to Idle rather than Processing.
//
// Per spec §9 this list is empirical and version-specific to the
// Claude Code release being observed; it is kept as data, not code, so
// it can be updated without touching detector logic.
var PastTenseCompletionVerbs = []string{
	"Cooked",
	"Baked",
	"Finished",
	"Completed",
	"Done",
	"Wrapped",
	"Crunched",
	"Pondered",
	"Brewed",
	"Simmered",
}

func isPastTenseCompletion(verb string) bool {
	for _, v := range PastTenseCompletionVerbs {
		if strings.EqualFold(v, verb) {
			return true
		}
		if strings.HasPrefix(strings.ToLower(verb), strings.ToLower(v)+" for ") {
			return true
		}
	}
	return false
}
