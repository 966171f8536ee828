package schema

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bundled(t *testing.T) *Document {
	t.Helper()
	doc, err := Bundled()
	require.NoError(t, err)
	return doc
}

func pipeline(steps ...any) map[string]any {
	return map[string]any{
		"kind":  "pipeline",
		"type":  "docker",
		"name":  "default",
		"steps": steps,
	}
}

func findError(errs []ValidationError, pointer, keyword string) (ValidationError, bool) {
	for _, e := range errs {
		if e.Path.Pointer() == pointer && e.Keyword == keyword {
			return e, true
		}
	}
	return ValidationError{}, false
}

func TestBundledSchemaLoads(t *testing.T) {
	doc := bundled(t)
	assert.Equal(t, DefaultURL, doc.ID())
	assert.Equal(t, SourceBundled, doc.Source())
	assert.Len(t, doc.Branches().branches, 9)
}

func TestValidateAcceptsValidPipeline(t *testing.T) {
	doc := bundled(t)
	ok, errs := doc.Validate(pipeline(map[string]any{
		"name":     "build",
		"image":    "node:18",
		"commands": []any{"npm install", "npm test"},
	}))
	assert.True(t, ok, "unexpected errors: %v", errs)
	assert.Empty(t, errs)
}

func TestValidateAcceptsOtherVariants(t *testing.T) {
	tests := []struct {
		name  string
		value map[string]any
	}{
		{
			name: "kubernetes pipeline",
			value: map[string]any{
				"kind": "pipeline", "type": "kubernetes", "name": "k8s",
				"node_selector": map[string]any{"disk": "ssd"},
				"steps": []any{map[string]any{
					"name": "test", "image": "golang",
					"resources": map[string]any{"limits": map[string]any{"cpu": 1000, "memory": "1Gi"}},
				}},
			},
		},
		{
			name: "exec pipeline",
			value: map[string]any{
				"kind": "pipeline", "type": "exec", "name": "host",
				"steps": []any{map[string]any{"name": "test", "commands": []any{"make"}}},
			},
		},
		{
			name: "secret",
			value: map[string]any{
				"kind": "secret", "name": "token",
				"get": map[string]any{"path": "secret/data/ci", "name": "token"},
			},
		},
		{
			name:  "signature",
			value: map[string]any{"kind": "signature", "hmac": "abc123"},
		},
		{
			name: "trigger with include",
			value: map[string]any{
				"kind": "pipeline", "steps": []any{},
				"trigger": map[string]any{
					"event":  map[string]any{"include": []any{"push", "tag"}},
					"branch": "main",
				},
			},
		},
	}

	doc := bundled(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := doc.Validate(tt.value)
			assert.True(t, ok, "unexpected errors: %v", errs)
		})
	}
}

func TestValidateTagsBranches(t *testing.T) {
	doc := bundled(t)
	_, errs := doc.Validate(map[string]any{"type": "docker", "name": "t", "steps": []any{}})
	require.NotEmpty(t, errs)

	var dockerRequired bool
	for _, e := range errs {
		if e.Keyword == "required" && e.Param("missingProperty") == "kind" &&
			e.Branch != nil && e.Branch.Discriminant == (Discriminant{Kind: "pipeline", Type: "docker"}) {
			dockerRequired = true
		}
	}
	assert.True(t, dockerRequired, "expected required kind from the docker branch: %v", errs)

	_, ok := findError(errs, "", "oneOf")
	assert.True(t, ok, "the root union error should be reported")
}

func TestValidateSplitsAdditionalProperties(t *testing.T) {
	doc := bundled(t)
	_, errs := doc.Validate(pipeline(map[string]any{
		"name": "build", "image": "alpine", "foo": 1, "bar": true,
	}))

	for _, property := range []string{"foo", "bar"} {
		e, ok := findError(errs, "/steps/0/"+property, "additionalProperties")
		require.True(t, ok, "missing additionalProperties error for %s: %v", property, errs)
		assert.Equal(t, property, e.Param("additionalProperty"))

		assert.False(t, e.Path[len(e.Path)-1].IsIndex())
		assert.True(t, e.Path[1].IsIndex())
		assert.Equal(t, 0, e.Path[1].Index())
	}
}

func TestValidateEnumParams(t *testing.T) {
	doc := bundled(t)
	value := pipeline()
	value["trigger"] = map[string]any{"event": []any{"push", "bogus"}}

	_, errs := doc.Validate(value)
	e, ok := findError(errs, "/trigger/event/1", "enum")
	require.True(t, ok, "expected enum error: %v", errs)

	allowed, ok := e.Params["allowedValues"].([]string)
	require.True(t, ok)
	assert.Contains(t, allowed, "push")
	assert.Contains(t, allowed, "pull_request")
}

func TestValidateSplitsRequired(t *testing.T) {
	doc := bundled(t)
	_, errs := doc.Validate(pipeline(map[string]any{"commands": []any{"ls"}}))

	for _, missing := range []string{"name", "image"} {
		found := false
		for _, e := range errs {
			if e.Keyword == "required" && e.Path.Pointer() == "/steps/0" && e.Param("missingProperty") == missing {
				found = true
			}
		}
		assert.True(t, found, "expected required %s at /steps/0: %v", missing, errs)
	}
}

func TestEvaluateFailures(t *testing.T) {
	var missing *Document
	_, err := missing.Evaluate(map[string]any{})
	assert.ErrorIs(t, err, ErrNotLoaded)

	doc := bundled(t)
	_, err = doc.Evaluate(map[string]any{"kind": math.Inf(1)})
	assert.Error(t, err)

	ok, errs := doc.Validate(map[string]any{"kind": math.NaN()})
	assert.False(t, ok)
	assert.Empty(t, errs)
}

func TestLoadFromDirectory(t *testing.T) {
	t.Run("missing assets", func(t *testing.T) {
		_, err := Load(Options{Dir: t.TempDir()})
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
		assert.Equal(t, RootAsset, loadErr.Asset)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, RootAsset), []byte("{not json"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, KubernetesAsset), bundledKubernetes, 0644))

		_, err := Load(Options{Dir: dir})
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, RootAsset, loadErr.Asset)
	})

	t.Run("valid assets", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, RootAsset), bundledRoot, 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, KubernetesAsset), bundledKubernetes, 0644))

		doc, err := Load(Options{Dir: dir})
		require.NoError(t, err)
		assert.Equal(t, SourceBundled, doc.Source())
	})
}

func TestLoadRemote(t *testing.T) {
	t.Run("served schema", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(bundledRoot)
		}))
		defer server.Close()

		doc, err := Load(Options{Source: SourceRemote, URL: server.URL + "/drone.json", Client: server.Client()})
		require.NoError(t, err)
		assert.Equal(t, SourceRemote, doc.Source())
		assert.Equal(t, server.URL+"/drone.json", doc.ID())

		ok, _ := doc.Validate(pipeline(map[string]any{"name": "build", "image": "golang"}))
		assert.True(t, ok)
	})

	t.Run("fetch failure falls back to bundled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		doc, err := Load(Options{Source: SourceRemote, URL: server.URL, Client: server.Client()})
		require.NoError(t, err)
		assert.Equal(t, SourceBundled, doc.Source())
		assert.Equal(t, DefaultURL, doc.ID())
	})
}

func TestProperty(t *testing.T) {
	doc := bundled(t)

	kind, ok := doc.Property("kind")
	require.True(t, ok)
	assert.Equal(t, "string", kind.Type)
	assert.Contains(t, kind.Enum, "pipeline")
	assert.NotEmpty(t, kind.Description)

	image, ok := doc.Property("image")
	require.True(t, ok)
	assert.Empty(t, image.Type)

	_, ok = doc.Property("nope")
	assert.False(t, ok)

	props := doc.Properties()
	require.NotEmpty(t, props)
	for i := 1; i < len(props); i++ {
		assert.Less(t, props[i-1].Name, props[i].Name)
	}
}

func TestStoreReload(t *testing.T) {
	store := NewStore(Options{Source: SourceBundled})
	first := store.Current()
	require.NotNil(t, first)

	current, err := store.Reload(Options{Dir: t.TempDir()})
	assert.Error(t, err)
	assert.Same(t, first, current)
	assert.Same(t, first, store.Current())

	second, err := store.Reload(Options{Source: SourceBundled})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Same(t, second, store.Current())

	empty := NewStore(Options{Dir: t.TempDir()})
	assert.Nil(t, empty.Current())
}
