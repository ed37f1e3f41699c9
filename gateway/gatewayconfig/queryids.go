package gatewayconfig

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"gopkg.in/yaml.v3"
)

//go:embed queryids.yaml
var defaultQueryIDsYAML embed.FS

// LoadQueryIDs returns the built-in default query-ID table (the embedded queryids.yaml)
// with any overrides from overridesJSON (the query_id_overrides setting, a JSON
// object keyed by endpoint kind) applied on top. overridesJSON may be empty.
func LoadQueryIDs(overridesJSON string) (urlbuilder.QueryIDs, error) {
	raw, err := defaultQueryIDsYAML.ReadFile("queryids.yaml")
	if err != nil {
		return nil, fmt.Errorf("gatewayconfig: reading embedded queryids.yaml: %w", err)
	}

	var defaults map[string]string
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("gatewayconfig: parsing queryids.yaml: %w", err)
	}

	ids := make(urlbuilder.QueryIDs, len(defaults))
	for kind, id := range defaults {
		ids[urlbuilder.EndpointKind(kind)] = id
	}

	if overridesJSON == "" {
		return ids, nil
	}

	var overrides map[string]string
	if err := json.Unmarshal([]byte(overridesJSON), &overrides); err != nil {
		return nil, fmt.Errorf("gatewayconfig: query_id_overrides is not a JSON object: %w", err)
	}
	for kind, id := range overrides {
		ids[urlbuilder.EndpointKind(kind)] = id
	}

	return ids, nil
}
