package watcher

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"mqwatch/utils/debug"
)

// String returns a readable tree of the whole index. It exists solely for
// manual inspection during debugging.
func (w *Watcher) String() string {
	if w == nil {
		return "<nil Watcher>"
	}
	return Dump(w.index)
}

// Dump renders index as a tree. NoMediaRule comes first, remaining media
// keys and selectors are in natural order, declarations in source order.
func Dump(index Index) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "MediaRuleIndex (%d media keys)", len(index))

	for _, key := range mediaKeys(index) {
		rules := index[key]
		tw.Line(1, "Media[%q] (%d selectors)", key, len(rules))

		selectors := slices.Collect(maps.Keys(rules))
		sort.Sort(natural.StringSlice(selectors))
		for _, sel := range selectors {
			decls := rules[sel]
			tw.Line(2, "Selector[%q] (%d declarations)", sel, len(decls))
			for _, d := range decls {
				tw.Pair(3, d.Property, d.Value)
			}
		}
	}
	return tw.String()
}

func mediaKeys(index Index) []string {
	keys := make([]string, 0, len(index))
	for k := range index {
		if k != NoMediaRule {
			keys = append(keys, k)
		}
	}
	sort.Sort(natural.StringSlice(keys))
	if _, ok := index[NoMediaRule]; ok {
		keys = slices.Insert(keys, 0, NoMediaRule)
	}
	return keys
}
