package metrics

import (
	_ "embed"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed tam.yaml
var tamYAML []byte

type tamTable struct {
	Market    string         `yaml:"market"`
	Provinces map[string]int `yaml:"provinces"`
}

var (
	tamOnce sync.Once
	tamTab  tamTable
	tamErr  error
)

// ProvinceTAM returns the canonical province → TAM capacity table for
// the South African market. Administrators may override individual
// regions in the store; this table is the seed reference.
func ProvinceTAM() (map[string]int, error) {
	tamOnce.Do(func() {
		tamErr = yaml.Unmarshal(tamYAML, &tamTab)
	})
	if tamErr != nil {
		return nil, eris.Wrap(tamErr, "metrics: parse tam table")
	}
	return tamTab.Provinces, nil
}
