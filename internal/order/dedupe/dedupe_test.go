package dedupe_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/voxorder/internal/order"
	"github.com/MrWong99/voxorder/internal/order/dedupe"
)

func item(product, size, temp string, mods order.ModifierSet) order.CategorizedItem {
	it := order.CategorizedItem{Product: product, Quantity: 1, Modifiers: mods, IsNewItem: true}
	if size != "" {
		it.Size = order.StringPtr(size)
	}
	if temp != "" {
		it.Temperature = order.StringPtr(temp)
	}
	return it
}

func TestDedupe_IdenticalLattes(t *testing.T) {
	t.Parallel()

	in := []order.CategorizedItem{
		item("latte", "medium", "hot", order.EmptyModifierSet()),
		item("latte", "medium", "hot", order.EmptyModifierSet()),
	}
	out := dedupe.Dedupe(in)
	if len(out) != 1 {
		t.Fatalf("got %d items, want 1", len(out))
	}
}

func TestDedupe_NormalisesCaseAndSpace(t *testing.T) {
	t.Parallel()

	in := []order.CategorizedItem{
		item("Latte", "Medium", "HOT", order.EmptyModifierSet()),
		item(" latte ", "medium ", "hot", order.ModifierSet{}),
	}
	if out := dedupe.Dedupe(in); len(out) != 1 || out[0].Product != "Latte" {
		t.Fatalf("got %+v, want first Latte only", out)
	}
}

func TestDedupe_DistinctSignaturesKept(t *testing.T) {
	t.Parallel()

	withTop := order.EmptyModifierSet()
	withTop.Toppings = []string{order.SoftTop}
	oat := order.OatMilk
	withOat := order.EmptyModifierSet()
	withOat.Milk = &oat

	in := []order.CategorizedItem{
		item("latte", "medium", "hot", order.EmptyModifierSet()),
		item("latte", "large", "hot", order.EmptyModifierSet()),
		item("latte", "medium", "iced", order.EmptyModifierSet()),
		item("latte", "medium", "hot", withTop),
		item("latte", "medium", "hot", withOat),
		item("mocha", "medium", "hot", order.EmptyModifierSet()),
		item("latte", "", "", order.EmptyModifierSet()),
	}
	out := dedupe.Dedupe(in)
	if len(out) != len(in) {
		t.Fatalf("got %d items, want %d", len(out), len(in))
	}
	for i := range in {
		if order.SignatureOf(out[i]) != order.SignatureOf(in[i]) {
			t.Errorf("order not preserved at %d", i)
		}
	}
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	a := item("mocha", "large", "hot", order.EmptyModifierSet())
	b := item("latte", "", "", order.EmptyModifierSet())
	dupA := a
	dupA.Quantity = 3
	dupA.SpecialInstructions = "extra hot"

	out := dedupe.Dedupe([]order.CategorizedItem{a, b, dupA})
	if len(out) != 2 {
		t.Fatalf("got %d items, want 2", len(out))
	}
	if out[0].Quantity != 1 || out[0].SpecialInstructions != "" {
		t.Errorf("first occurrence not kept: %+v", out[0])
	}
	if out[1].Product != "latte" {
		t.Errorf("out[1] = %q, want latte", out[1].Product)
	}
}

func TestDedupe_Empty(t *testing.T) {
	t.Parallel()

	if out := dedupe.Dedupe(nil); out == nil || len(out) != 0 {
		t.Errorf("Dedupe(nil) = %#v, want empty slice", out)
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	t.Parallel()

	in := []order.CategorizedItem{
		item("latte", "medium", "hot", order.EmptyModifierSet()),
		item("mocha", "", "", order.EmptyModifierSet()),
		item("latte", "medium", "hot", order.EmptyModifierSet()),
		item("MOCHA", "", "", order.EmptyModifierSet()),
	}
	once := dedupe.Dedupe(in)
	twice := dedupe.Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Dedupe is not idempotent:\n once=%+v\ntwice=%+v", once, twice)
	}
	if len(in) != 4 {
		t.Error("input slice was modified")
	}
}
