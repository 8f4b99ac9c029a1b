// Package dedupe collapses duplicate extractions of the same spoken item.
package dedupe

import "github.com/MrWong99/voxorder/internal/order"

// Dedupe returns items with every repeated [order.Signature] removed. The
// first occurrence is kept and relative order is preserved. The input slice
// is not modified.
func Dedupe(items []order.CategorizedItem) []order.CategorizedItem {
	out := make([]order.CategorizedItem, 0, len(items))
	seen := make(map[order.Signature]struct{}, len(items))
	for _, it := range items {
		sig := order.SignatureOf(it)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, it)
	}
	return out
}
