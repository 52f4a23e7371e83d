// Package prompt loads versioned prompt templates from disk and renders
// them against a variable set, producing both the materialized text and
// a provenance snapshot.
package prompt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Definition is one versioned prompt as stored on disk: YAML frontmatter
// (id, version, model hint) followed by a `---` separator and the
// template body.
type Definition struct {
	ID        string `yaml:"id"`
	Version   string `yaml:"version"`
	ModelHint string `yaml:"model_hint"`
	Template  string `yaml:"-"`
}

// Snapshot is the provenance record attached to every Prospect/
// ProjectProspect produced using a rendered prompt.
type Snapshot struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	VarsHash string `json:"vars_hash"`
}

// Registry loads all prompt definitions from a directory once at
// construction (load-once semantics for the duration of a run) and
// serves Render calls against the immutable in-memory set.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	tmpls map[string]*template.Template
}

// Load reads every `*.prompt.yaml` file in dir and compiles its template
// body. Returns an error if any file is malformed or a template fails to
// parse.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt: reading %s: %w", dir, err)
	}

	r := &Registry{
		defs:  make(map[string]*Definition),
		tmpls: make(map[string]*template.Template),
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".prompt.yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := loadOne(path)
		if err != nil {
			return nil, fmt.Errorf("prompt: %s: %w", path, err)
		}
		tmpl, err := compileTemplate(def.ID, def.Template)
		if err != nil {
			return nil, fmt.Errorf("prompt: %s: compiling template: %w", path, err)
		}
		r.defs[def.ID] = def
		r.tmpls[def.ID] = tmpl
	}

	return r, nil
}

// LoadFromDefinitions builds a Registry directly from in-memory
// definitions, bypassing disk I/O. Used by tests and by callers that
// embed prompts instead of shipping a prompt directory.
func LoadFromDefinitions(defs []Definition) (*Registry, error) {
	r := &Registry{
		defs:  make(map[string]*Definition),
		tmpls: make(map[string]*template.Template),
	}
	for i := range defs {
		def := defs[i]
		tmpl, err := compileTemplate(def.ID, def.Template)
		if err != nil {
			return nil, fmt.Errorf("prompt: %s: compiling template: %w", def.ID, err)
		}
		r.defs[def.ID] = &def
		r.tmpls[def.ID] = tmpl
	}
	return r, nil
}

func loadOne(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseDefinition(raw)
}

// parseDefinition splits a prompt file's raw bytes into YAML frontmatter
// and template body at the first line containing only "---".
func parseDefinition(raw []byte) (*Definition, error) {
	parts := strings.SplitN(string(raw), "\n---\n", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected frontmatter and template separated by a line containing only '---'")
	}
	var def Definition
	if err := yaml.Unmarshal([]byte(parts[0]), &def); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("frontmatter missing id")
	}
	def.Template = parts[1]
	return &def, nil
}

// compileTemplate wraps text/template in "missingkey=error" mode so that
// any {{var}} left unresolved at render time is a fatal error (spec
// §4.3): unknown variables in the template are a fatal error.
func compileTemplate(id, body string) (*template.Template, error) {
	return template.New(id).Option("missingkey=error").Parse(body)
}

// Render materializes prompt id against vars. Extra variables not
// referenced by the template are silently ignored (they are simply never
// looked up); any {{var}} in the template with no corresponding key is a
// fatal error.
func (r *Registry) Render(id string, vars map[string]string) (string, Snapshot, error) {
	r.mu.RLock()
	def, ok := r.defs[id]
	tmpl := r.tmpls[id]
	r.mu.RUnlock()
	if !ok {
		return "", Snapshot{}, fmt.Errorf("prompt: unknown prompt id %q", id)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", Snapshot{}, fmt.Errorf("prompt: rendering %q: %w", id, err)
	}

	return buf.String(), Snapshot{
		ID:       def.ID,
		Version:  def.Version,
		VarsHash: hashVars(vars),
	}, nil
}

// Versions returns the loaded version string for every prompt id, used
// by the orchestrator's first-run config lock to record which prompt
// set a project's first run was started with.
func (r *Registry) Versions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.defs))
	for id, def := range r.defs {
		out[id] = def.Version
	}
	return out
}

// ModelHint returns the configured model hint for a prompt id, if any.
func (r *Registry) ModelHint(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return "", false
	}
	return def.ModelHint, true
}

// hashVars produces a stable hash over a vars map regardless of Go's
// randomized map iteration order.
func hashVars(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := make(map[string]string, len(vars))
	for _, k := range keys {
		canonical[k] = vars[k]
	}
	b, _ := json.Marshal(canonical)

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
