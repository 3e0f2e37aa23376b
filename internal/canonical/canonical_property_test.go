package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var keyGen = rapid.StringMatching(`[a-z]{1,8}`)

func decodeJSON(t *rapid.T, doc string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", doc, err)
	}
	return v
}

// writeObject renders an object with its keys in the given order.
func writeObject(keys []string, vals map[string]int) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%q:%d", k, vals[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Key presentation order never affects the canonical form.
func TestPropertyKeyOrderIndependent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vals := rapid.MapOf(keyGen, rapid.IntRange(-1000, 1000)).Draw(rt, "vals")
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		perm := rapid.Permutation(keys).Draw(rt, "perm")

		a := MustString(decodeJSON(rt, writeObject(keys, vals)))
		b := MustString(decodeJSON(rt, writeObject(perm, vals)))
		if a != b {
			rt.Fatalf("order changed canonical form: %s != %s", a, b)
		}
	})
}

// Adding explicit null members is indistinguishable from leaving them out.
func TestPropertyNullEqualsAbsent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.MapOf(keyGen, rapid.IntRange(0, 50)).Draw(rt, "base")
		extra := rapid.SliceOfN(rapid.StringMatching(`[A-Z]{1,4}`), 0, 5).Draw(rt, "extra")

		plain := make(map[string]any, len(base))
		withNulls := make(map[string]any, len(base)+len(extra))
		for k, v := range base {
			plain[k] = v
			withNulls[k] = v
		}
		for _, k := range extra {
			withNulls[k] = nil
		}
		nested := map[string]any{"hint": withNulls, "gone": nil}

		if MustString(plain) != MustString(withNulls) {
			rt.Fatalf("null members changed canonical form")
		}
		if MustString(map[string]any{"hint": plain}) != MustString(nested) {
			rt.Fatalf("nested null members changed canonical form")
		}
	})
}

// Sequence order is significant.
func TestPropertyArrayOrderSignificant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		items := rapid.SliceOfNDistinct(keyGen, 2, 6, rapid.ID[string]).Draw(rt, "items")
		reversed := make([]any, len(items))
		forward := make([]any, len(items))
		for i, it := range items {
			forward[i] = it
			reversed[len(items)-1-i] = it
		}

		if MustString(forward) == MustString(reversed) {
			rt.Fatalf("reordering %v did not change canonical form", items)
		}
	})
}

// Canonical output decodes back to a value with the same canonical output.
func TestPropertyIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vals := rapid.MapOf(keyGen, rapid.OneOf(
			rapid.Just[any](nil),
			rapid.Map(rapid.IntRange(-5, 5), func(i int) any { return i }),
			rapid.Map(rapid.Bool(), func(b bool) any { return b }),
			rapid.Map(rapid.String(), func(s string) any { return s }),
		)).Draw(rt, "vals")

		first := MustString(vals)
		second := MustString(decodeJSON(rt, first))
		if first != second {
			rt.Fatalf("not idempotent: %s != %s", first, second)
		}
	})
}

// Distinct integer literals keep distinct canonical forms at any magnitude.
func TestPropertyIntegersExact(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		digits := rapid.StringMatching(`[1-9][0-9]{0,39}`).Draw(rt, "digits")
		got := MustString(json.Number(digits))
		if got != digits {
			rt.Fatalf("integer %s canonicalized to %s", digits, got)
		}
		next := MustString(json.Number(digits + "1"))
		if next == got {
			rt.Fatalf("%s and %s1 share a canonical form", digits, digits)
		}
	})
}
