package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func addToolDef() Definition {
	return Definition{
		Name:        "add",
		Description: "Add two integers.",
		Params: []Param{
			{Name: "a", Type: TypeInteger, Required: true},
			{Name: "b", Type: TypeInteger, Required: true},
		},
		DeclaredReturn: &Shape{
			Kind:       KindObject,
			Fields:     map[string]*Shape{"result": {Kind: KindPrimitive, Primitive: TypeInteger}},
			FieldOrder: []string{"result"},
		},
	}
}

func noopCall(ctx context.Context, args []byte) ([]byte, bool, error) {
	return []byte(`{"result":3}`), true, nil
}

func TestRegisterAndStubRendering(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Register(context.Background(), addToolDef(), noopCall))

	prompt := r.GenerateStructuredToolPrompt("python")
	require.Contains(t, prompt, "def add(a: int, b: int):")
	require.Contains(t, prompt, "Returns:")
	require.Contains(t, prompt, "result")
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Register(context.Background(), addToolDef(), noopCall))
	err := r.Register(context.Background(), addToolDef(), noopCall)
	require.Error(t, err)

	// Failed registration must not mutate the registry: the original tool
	// is still resolvable and no second record was inserted.
	recs := r.GetAllTools()
	require.Len(t, recs, 1)
}

func TestRegisterMissingNameFails(t *testing.T) {
	r := New(nil, nil)
	def := addToolDef()
	def.Name = ""
	err := r.Register(context.Background(), def, noopCall)
	require.Error(t, err)
}

func TestSchemaInferenceWidensOnDifferentTypes(t *testing.T) {
	r := New(nil, nil)
	def := Definition{Name: "lookup", Params: []Param{{Name: "key", Type: TypeString, Required: true}}}
	require.NoError(t, r.Register(context.Background(), def, noopCall))

	r.Schema.Observe(context.Background(), "lookup", []byte(`{"ok":true,"value":42}`), true)
	r.Schema.Observe(context.Background(), "lookup", []byte(`{"ok":true,"value":"hi"}`), true)

	schema, ok := r.GetReturnSchema("lookup")
	require.True(t, ok)
	require.Equal(t, KindObject, schema.Success.Kind)
	okField := schema.Success.Fields["ok"]
	require.Equal(t, TypeBoolean, okField.Primitive)
	valueField := schema.Success.Fields["value"]
	require.Equal(t, TypeUnknown, valueField.Primitive)
	require.Equal(t, 2, schema.ObservationCount)
	require.True(t, schema.HasSource(SourceObserved))
}

func TestRegisterDeclaredClearObservedRoundTrip(t *testing.T) {
	r := New(nil, nil)
	shape := &Shape{Kind: KindPrimitive, Primitive: TypeString}
	r.Schema.RegisterDeclared("echo", shape)
	r.Schema.Observe(context.Background(), "echo", []byte(`42`), true)

	got, ok := r.GetReturnSchema("echo")
	require.True(t, ok)
	require.Equal(t, TypeUnknown, got.Success.Primitive) // widened by observation

	r.Schema.ClearObserved("echo")
	got, ok = r.GetReturnSchema("echo")
	require.True(t, ok)
	require.True(t, got.Success.Equal(shape))
	require.False(t, got.HasSource(SourceObserved))
}

func TestGetToolsForLanguageFiltersByDeclaredLanguages(t *testing.T) {
	r := New(nil, nil)
	pyOnly := addToolDef()
	pyOnly.Name = "py_only"
	pyOnly.Meta.Languages = []string{"python"}
	require.NoError(t, r.Register(context.Background(), pyOnly, noopCall))

	any := addToolDef()
	any.Name = "any_lang"
	require.NoError(t, r.Register(context.Background(), any, noopCall))

	js := r.GetToolsForLanguage("javascript")
	var names []string
	for _, rec := range js {
		names = append(names, rec.Definition.Name)
	}
	require.Contains(t, names, "any_lang")
	require.NotContains(t, names, "py_only")
}

func TestGenerateStructuredToolPromptGroupsByTargetClass(t *testing.T) {
	r := New(nil, nil)
	def1 := addToolDef()
	def1.Name = "search_web"
	def1.Meta.TargetClass = "SearchTools"
	def2 := addToolDef()
	def2.Name = "search_kb"
	def2.Meta.TargetClass = "SearchTools"
	require.NoError(t, r.Register(context.Background(), def1, noopCall))
	require.NoError(t, r.Register(context.Background(), def2, noopCall))

	prompt := r.GenerateStructuredToolPrompt("python")
	require.True(t, strings.Contains(prompt, "class SearchTools:"))
}
