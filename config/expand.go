package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

var bracedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands $VAR and ${VAR} in s using lookup.
//
// A ${VAR} naming an unset variable is an error listing every missing name.
// A bare $VAR that is unset expands to "". $$ emits a literal $.
// A nil lookup uses os.LookupEnv.
func ExpandEnvStrict(s string, lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	const dollar = "\x00OBR_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	for _, m := range bracedVar.FindAllStringSubmatch(s, -1) {
		if _, ok := lookup(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	s = os.Expand(s, func(key string) string {
		v, _ := lookup(key)
		return v
	})
	return strings.ReplaceAll(s, dollar, "$"), nil
}
