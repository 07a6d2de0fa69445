// Package differ provides semantic comparison of CloudFormation templates and
// Kubernetes manifest sets.
package differ

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/serialize"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons
	IgnoreOrder bool
}

// Result contains the difference between two artifacts.
type Result struct {
	Diff    wetwire.Diff
	Summary wetwire.DiffSummary
}

// Compare compares two CloudFormation templates and returns differences.
func Compare(template1, template2 *wetwire.Template, opts Options) (*Result, error) {
	if template1 == nil || template2 == nil {
		return nil, errors.New("differ: nil template")
	}

	old, err := resourceEntries(template1.Resources)
	if err != nil {
		return nil, err
	}
	updated, err := resourceEntries(template2.Resources)
	if err != nil {
		return nil, err
	}
	return compare(old, updated, opts), nil
}

// CompareManifests compares two manifest sets. Manifests are matched by
// kind and name.
func CompareManifests(docs1, docs2 []map[string]any, opts Options) (*Result, error) {
	old, err := manifestEntries(docs1)
	if err != nil {
		return nil, err
	}
	updated, err := manifestEntries(docs2)
	if err != nil {
		return nil, err
	}
	return compare(old, updated, opts), nil
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}

	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}

	return Compare(t1, t2, opts)
}

// LoadTemplate loads a CloudFormation template from a file.
func LoadTemplate(path string) (*wetwire.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var template wetwire.Template

	// Try JSON first
	if err := json.Unmarshal(data, &template); err != nil {
		// Try YAML
		if err := yaml.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse as JSON or YAML: %w", err)
		}
	}

	return &template, nil
}

// LoadManifests loads every manifest under path. A file may hold several
// YAML documents; a directory is read recursively for *.yaml and *.yml
// files in lexical order.
func LoadManifests(path string) ([]map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loadManifestFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(p); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var docs []map[string]any
	for _, f := range files {
		fileDocs, err := loadManifestFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// ManifestDocuments converts composed manifests into the form LoadManifests returns.
func ManifestDocuments(manifests []composer.Manifest) ([]map[string]any, error) {
	docs := make([]map[string]any, 0, len(manifests))
	for _, m := range manifests {
		doc, err := serialize.Manifest(m.Object)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", m.Kind, m.Name, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadManifestFile(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if len(doc) > 0 {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

type entry struct {
	typ  string
	body map[string]any
}

func resourceEntries(resources map[string]wetwire.ResourceDef) (map[string]entry, error) {
	entries := make(map[string]entry, len(resources))
	for name, def := range resources {
		body := map[string]any{"Type": def.Type}
		if len(def.Properties) > 0 {
			body["Properties"] = def.Properties
		}
		if len(def.DependsOn) > 0 {
			body["DependsOn"] = def.DependsOn
		}
		normalized, err := normalizeJSON(body)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
		entries[name] = entry{typ: def.Type, body: normalized}
	}
	return entries, nil
}

func manifestEntries(docs []map[string]any) (map[string]entry, error) {
	entries := make(map[string]entry, len(docs))
	for i, doc := range docs {
		kind, _ := doc["kind"].(string)
		meta, _ := doc["metadata"].(map[string]any)
		name, _ := meta["name"].(string)
		if kind == "" || name == "" {
			return nil, fmt.Errorf("manifest %d: missing kind or metadata.name", i)
		}
		normalized, err := normalizeJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("manifest %s/%s: %w", kind, name, err)
		}
		key := kind + "/" + name
		if _, dup := entries[key]; dup {
			return nil, fmt.Errorf("duplicate manifest %s", key)
		}
		entries[key] = entry{typ: kind, body: normalized}
	}
	return entries, nil
}

// normalizeJSON round-trips doc through JSON so values decoded by different
// parsers compare equal.
func normalizeJSON(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compare(old, updated map[string]entry, opts Options) *Result {
	result := &Result{}

	// Find added entries (in updated but not in old)
	for name, e := range updated {
		if _, exists := old[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, wetwire.DiffEntry{Name: name, Type: e.typ})
		}
	}

	// Find removed entries (in old but not in updated)
	for name, e := range old {
		if _, exists := updated[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, wetwire.DiffEntry{Name: name, Type: e.typ})
		}
	}

	// Find modified entries
	for name, e1 := range old {
		e2, exists := updated[name]
		if !exists {
			continue
		}
		var changes []string
		if e1.typ != e2.typ {
			changes = append(changes, fmt.Sprintf("Type changed: %s → %s", e1.typ, e2.typ))
		}
		changes = append(changes, compareProperties("", e1.body, e2.body, opts)...)
		if len(changes) > 0 {
			result.Diff.Modified = append(result.Diff.Modified, wetwire.DiffEntry{
				Name:    name,
				Type:    e1.typ,
				Changes: changes,
			})
		}
	}

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = wetwire.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified

	return result
}

// compareProperties recursively compares property maps. Nested maps are
// descended into so changes carry their full path.
func compareProperties(prefix string, props1, props2 map[string]any, opts Options) []string {
	var changes []string

	for key, val2 := range props2 {
		path := joinPath(prefix, key)
		val1, exists := props1[key]
		if !exists {
			changes = append(changes, fmt.Sprintf("%s added", path))
			continue
		}
		m1, ok1 := val1.(map[string]any)
		m2, ok2 := val2.(map[string]any)
		if ok1 && ok2 {
			changes = append(changes, compareProperties(path, m1, m2, opts)...)
			continue
		}
		if !deepEqual(val1, val2, opts) {
			changes = append(changes, fmt.Sprintf("%s modified", path))
		}
	}

	for key := range props1 {
		if _, exists := props2[key]; !exists {
			changes = append(changes, fmt.Sprintf("%s removed", joinPath(prefix, key)))
		}
	}

	sort.Strings(changes)
	return changes
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// deepEqual compares two values deeply, optionally ignoring order.
func deepEqual(a, b any, opts Options) bool {
	if opts.IgnoreOrder {
		a = normalizeValue(a)
		b = normalizeValue(b)
	}
	return reflect.DeepEqual(a, b)
}

// normalizeValue sorts every slice by the JSON form of its elements.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []any:
		type keyed struct {
			key string
			val any
		}
		elems := make([]keyed, len(val))
		for i, elem := range val {
			n := normalizeValue(elem)
			data, _ := json.Marshal(n)
			elems[i] = keyed{key: string(data), val: n}
		}
		sort.SliceStable(elems, func(i, j int) bool { return elems[i].key < elems[j].key })
		result := make([]any, len(elems))
		for i, e := range elems {
			result[i] = e.val
		}
		return result
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = normalizeValue(v)
		}
		return result
	default:
		return v
	}
}

// sortEntries sorts diff entries by name.
func sortEntries(entries []wetwire.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}

// Format renders r as human-readable text.
func Format(r *Result) string {
	if r.Summary.Total == 0 {
		return "No differences\n"
	}
	var sb strings.Builder
	for _, e := range r.Diff.Added {
		fmt.Fprintf(&sb, "+ %s (%s)\n", e.Name, e.Type)
	}
	for _, e := range r.Diff.Removed {
		fmt.Fprintf(&sb, "- %s (%s)\n", e.Name, e.Type)
	}
	for _, e := range r.Diff.Modified {
		fmt.Fprintf(&sb, "~ %s (%s)\n", e.Name, e.Type)
		for _, c := range e.Changes {
			fmt.Fprintf(&sb, "    %s\n", c)
		}
	}
	fmt.Fprintf(&sb, "\n%d added, %d removed, %d modified\n", r.Summary.Added, r.Summary.Removed, r.Summary.Modified)
	return sb.String()
}
