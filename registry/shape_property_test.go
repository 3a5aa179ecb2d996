package registry

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genJSONValue produces arbitrary JSON-decodable values (bounded depth):
// booleans, numbers, strings and two-element arrays of these, for
// exercising the shape-merge properties below.
func genJSONValue(depth int) gopter.Gen {
	if depth <= 0 {
		return gen.OneGenOf(
			gen.Bool().Map(func(b bool) any { return b }),
			gen.Float64Range(-100, 100).Map(func(f float64) any { return f }),
			gen.AlphaString().Map(func(s string) any { return s }),
		)
	}
	return gen.OneGenOf(
		gen.Bool().Map(func(b bool) any { return b }),
		gen.Float64Range(-100, 100).Map(func(f float64) any { return f }),
		gen.AlphaString().Map(func(s string) any { return s }),
		gen.SliceOfN(2, genJSONValue(depth-1)).Map(func(vals []any) any { return vals }),
	)
}

// TestSchemaMergeIsMonotonic checks two properties of mergeShape over
// generated values: merging a shape with itself loses no structure (it may
// differ only in optionality flags), and merging is commutative up to field
// order.
func TestSchemaMergeIsMonotonic(t *testing.T) {
	params := gopter.DefaultTestParameters()
	props := gopter.NewProperties(params)

	props.Property("merging a shape into itself leaves it unchanged", prop.ForAll(
		func(v any) bool {
			s := shapeOf(v)
			merged := mergeShape(s, cloneShape(s))
			return merged.Equal(s) || coarsensOnlyOptionality(s, merged)
		},
		genJSONValue(2),
	))

	props.Property("merge is commutative up to field order", prop.ForAll(
		func(a, b any) bool {
			sa, sb := shapeOf(a), shapeOf(b)
			ab := mergeShape(sa, sb)
			ba := mergeShape(sb, sa)
			return ab.Equal(ba)
		},
		genJSONValue(2), genJSONValue(2),
	))

	props.TestingRun(t)
}

// coarsensOnlyOptionality allows merge(s, s) to differ from s only by
// optionality flags being monotonically set, never by losing structure.
func coarsensOnlyOptionality(orig, merged *Shape) bool {
	if orig == nil || merged == nil {
		return orig == merged
	}
	if orig.Kind != merged.Kind {
		return false
	}
	switch orig.Kind {
	case KindPrimitive:
		return orig.Primitive == merged.Primitive
	case KindArray:
		return coarsensOnlyOptionality(orig.Item, merged.Item)
	case KindObject:
		if len(orig.Fields) != len(merged.Fields) {
			return false
		}
		for k, v := range orig.Fields {
			mv, ok := merged.Fields[k]
			if !ok || !coarsensOnlyOptionality(v, mv) {
				return false
			}
		}
		return true
	}
	return false
}
