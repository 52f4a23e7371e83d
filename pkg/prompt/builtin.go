package prompt

import "embed"

// Prompt ids referenced by the stage workers.
const (
	QueryOptimizationID = "query-optimization"
	WebsiteExtractionID = "website-extraction"
	RelevanceScoringID  = "relevance-scoring"
)

//go:embed templates/*.prompt.yaml
var builtinFS embed.FS

// LoadBuiltin loads the prompts shipped with the binary. Operators may
// instead point Load at an on-disk override directory to customize
// prompt text without a rebuild; cmd/prospector falls back to these
// when Load fails for the configured prompts directory.
func LoadBuiltin() (*Registry, error) {
	entries, err := builtinFS.ReadDir("templates")
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(entries))
	for _, entry := range entries {
		raw, err := builtinFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, err
		}
		def, err := parseDefinition(raw)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return LoadFromDefinitions(defs)
}
