package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrWong99/voxorder/internal/extract"
	"github.com/MrWong99/voxorder/internal/order"
)

// printSummary writes the human-readable order review shown with -verbose.
func printSummary(w io.Writer, res *extract.Result) {
	doc := res.Document
	fmt.Fprintf(w, "Extracted %d item(s) in %s (%d parsed, %d duplicate, %d rejected)\n",
		len(doc.Items), res.Latency.Round(time.Millisecond), res.Parsed, res.Duplicates, len(res.Rejected))

	for _, line := range doc.Items {
		marker := "✓"
		if line.Status != order.StatusConfirmed {
			marker = "?"
		}
		fmt.Fprintf(w, "  %s %s (%s, %s, x%d) $%.2f  %.0f%%\n",
			marker, line.Name, deref(line.Size), deref(line.Temperature),
			line.Quantity, line.Price, line.Confidence*100)
		for _, mod := range modifierLines(line.Modifiers) {
			fmt.Fprintf(w, "      %s\n", mod)
		}
		if line.SpecialInstructions != "" {
			fmt.Fprintf(w, "      note: %s\n", line.SpecialInstructions)
		}
	}
	for _, r := range res.Rejected {
		fmt.Fprintf(w, "  ✗ %s: %s\n", r.Item.Product, r.Reason)
	}

	fmt.Fprintf(w, "Subtotal: $%.2f  Total: $%.2f  Confidence: %.0f%%\n",
		doc.Subtotal, doc.Total, doc.Confidence*100)
}

// modifierLines renders the non-empty modifier categories as "label: a, b".
func modifierLines(m order.ModifierSet) []string {
	var out []string
	add := func(label string, values ...string) {
		var kept []string
		for _, v := range values {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			out = append(out, label+": "+strings.Join(kept, ", "))
		}
	}
	add("toppings", m.Toppings...)
	add("drizzles", m.Drizzles...)
	add("add-ins", m.AddIns...)
	if m.Milk != nil {
		add("milk", string(*m.Milk))
	}
	if m.IceLevel != nil {
		add("ice", string(*m.IceLevel))
	}
	if m.Sweetness != nil {
		add("sweetness", string(*m.Sweetness))
	}
	add("liquid sweetener", m.LiquidSweetener...)
	add("sweetener packets", m.SweetenerPackets...)
	add("espresso", m.Espresso...)
	return out
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
