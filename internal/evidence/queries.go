package evidence

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed queries.yaml
var queriesYAML []byte

// queryTemplates holds the provider prompt per search stage. Placeholders
// ({name}, {address}, {locality}, {region}, {postal_code}) are substituted
// at render time.
type queryTemplates struct {
	RecordsPrimary  string `yaml:"records_primary"`
	RecordsRegistry string `yaml:"records_registry"`
	RecordsAreal    string `yaml:"records_areal"`
	Financial       string `yaml:"financial"`
	Rules           string `yaml:"rules"`
	Community       string `yaml:"community"`
}

func loadQueries() (queryTemplates, error) {
	var q queryTemplates
	err := yaml.Unmarshal(queriesYAML, &q)
	return q, err
}

// render substitutes entity context into a template.
func render(tmpl string, ec Context) string {
	return strings.NewReplacer(
		"{name}", ec.Name,
		"{address}", ec.Address(),
		"{locality}", ec.Location.Locality,
		"{region}", ec.Location.Region,
		"{postal_code}", ec.Location.PostalCode,
	).Replace(tmpl)
}
