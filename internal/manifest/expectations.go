package manifest

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// ExpectedFailures maps a test class to the methods expected to fail on bots.
type ExpectedFailures map[string][]Method

// Method names one test method of a class.
type Method struct {
	Name string `json:"name"`
}

// LoadExpectedFailures reads the expected failures file at path.
func LoadExpectedFailures(path string) (ExpectedFailures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read expected failures %q", path)
	}
	if err := validateDocument(expectedFailuresSchema, data); err != nil {
		return nil, errors.Wrap(err, "expected failures")
	}
	var ef ExpectedFailures
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, errors.Wrap(err, "decode expected failures")
	}
	return ef, nil
}

// Identifiers flattens the set into <class>#<method> identifiers. Classes are
// sorted, methods keep file order.
func (ef ExpectedFailures) Identifiers() []string {
	classes := make([]string, 0, len(ef))
	for class := range ef {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	var out []string
	for _, class := range classes {
		for _, m := range ef[class] {
			out = append(out, class+"#"+m.Name)
		}
	}
	return out
}
