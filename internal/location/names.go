package location

import (
	"strconv"
	"strings"
)

const suffixSeparator = " -- "

// Disambiguate appends " -- N" to candidate so it doesn't collide with
// existingNames. N is one more than the largest suffix found on any existing
// name that contains candidate, or 1 when there is none.
//
// Matching is by substring, so "Lake" also counts suffixes on "Lakeside -- 4".
// Existing saved names depend on this numbering, keep it.
func Disambiguate(candidate string, existingNames []string) string {
	highest := 0
	for _, name := range existingNames {
		if !strings.Contains(name, candidate) {
			continue
		}
		idx := strings.LastIndex(name, suffixSeparator)
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(name[idx+len(suffixSeparator):]))
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return candidate + suffixSeparator + strconv.Itoa(highest+1)
}
