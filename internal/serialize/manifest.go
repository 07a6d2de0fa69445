package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"
)

// documentSeparator joins manifests in a multi-document YAML stream.
const documentSeparator = "---\n"

// Manifest converts a typed Kubernetes object into a plain map. The object's
// status and every null value are dropped so the output describes only the
// desired state.
func Manifest(obj runtime.Object) (map[string]any, error) {
	if obj == nil {
		return nil, fmt.Errorf("serialize: nil object")
	}
	u, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("converting %T: %w", obj, err)
	}
	delete(u, "status")
	pruneNulls(u)
	return u, nil
}

// ManifestYAML renders obj as a single YAML document with sorted keys.
func ManifestYAML(obj runtime.Object) ([]byte, error) {
	m, err := Manifest(obj)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(m)
}

// ManifestJSON renders obj as indented JSON with sorted keys.
func ManifestJSON(obj runtime.Object) ([]byte, error) {
	m, err := Manifest(obj)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(m, "", "  ")
}

// YAMLStream renders objs, in order, as one multi-document YAML stream.
func YAMLStream(objs ...runtime.Object) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objs {
		data, err := ManifestYAML(obj)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteString(documentSeparator)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// SplitYAMLStream splits a multi-document stream into decoded documents.
// Empty documents are skipped.
func SplitYAMLStream(data []byte) ([]map[string]any, error) {
	var docs []map[string]any
	for i, chunk := range bytes.Split(data, []byte("\n"+documentSeparator)) {
		chunk = bytes.TrimPrefix(chunk, []byte(documentSeparator))
		if len(bytes.TrimSpace(chunk)) == 0 {
			continue
		}
		var doc map[string]any
		if err := yaml.Unmarshal(chunk, &doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if len(doc) > 0 {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func pruneNulls(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if child == nil {
				delete(t, k)
				continue
			}
			pruneNulls(child)
		}
	case []any:
		for _, child := range t {
			pruneNulls(child)
		}
	}
}
