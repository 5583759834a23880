package browse

import (
	"reflect"
	"testing"

	"github.com/lightblue/fitbot-go/internal/faq"
)

func testRecords() []faq.Record {
	return []faq.Record{
		{Question: "When do I enter covers?", Answer: "At the end of each shift.", Category: "Covers", Subcategory: "Logging"},
		{Question: "Can I edit covers later?", Answer: "Yes, within 24 hours.", Category: "Covers", Subcategory: "Logging"},
		{Question: "What counts as a cover?", Answer: "One served guest.", Category: "Covers", Subcategory: "Definitions"},
		{Question: "What is FWCV?", Answer: "Food waste per cover value.", Category: "Waste", Subcategory: "Metrics"},
		{Question: "No category on this one", Answer: "Still retrievable."},
	}
}

func Test_NewTree_PreservesSourceOrderAndSkipsUncategorized(t *testing.T) {
	t.Parallel()
	tree := NewTree(testRecords())

	want := []string{"Covers", "Waste"}
	if !reflect.DeepEqual(tree.Categories(), want) {
		t.Errorf("categories = %v, want %v", tree.Categories(), want)
	}
	if tree.Empty() {
		t.Error("tree with records reported empty")
	}
}

func Test_NewTree_EmptyWhenNothingBrowsable(t *testing.T) {
	t.Parallel()
	tree := NewTree([]faq.Record{{Question: "q", Answer: "a"}})
	if !tree.Empty() {
		t.Error("want empty tree for uncategorized records")
	}
}

func Test_Navigator_FullDescent(t *testing.T) {
	t.Parallel()
	n := NewNavigator(NewTree(testRecords()))

	if n.State() != StateHome {
		t.Fatalf("initial state = %s, want home", n.State())
	}
	if err := n.Select("Covers"); err != nil {
		t.Fatalf("select category: %v", err)
	}
	if n.State() != StateCategory {
		t.Fatalf("state = %s, want category", n.State())
	}
	if got := n.Options(); !reflect.DeepEqual(got, []string{"Logging", "Definitions"}) {
		t.Errorf("subcategories = %v", got)
	}
	if err := n.Select("Logging"); err != nil {
		t.Fatalf("select subcategory: %v", err)
	}
	if got := n.Options(); !reflect.DeepEqual(got, []string{"When do I enter covers?", "Can I edit covers later?"}) {
		t.Errorf("questions = %v", got)
	}
	if err := n.Select("Can I edit covers later?"); err != nil {
		t.Fatalf("select question: %v", err)
	}

	art, ok := n.Article()
	if !ok {
		t.Fatal("want article at article state")
	}
	if art.Answer != "Yes, within 24 hours." {
		t.Errorf("answer = %q", art.Answer)
	}
	if got := n.Path(); !reflect.DeepEqual(got, []string{"Covers", "Logging", "Can I edit covers later?"}) {
		t.Errorf("path = %v", got)
	}
}

func Test_Navigator_InvalidSelections(t *testing.T) {
	t.Parallel()
	n := NewNavigator(NewTree(testRecords()))

	if err := n.Select("Nonexistent"); err == nil {
		t.Error("unknown category: want error")
	}
	if n.State() != StateHome {
		t.Errorf("failed select must not change state, got %s", n.State())
	}

	if err := n.Select("Waste"); err != nil {
		t.Fatal(err)
	}
	if err := n.Select("Logging"); err == nil {
		t.Error("subcategory from wrong category: want error")
	}
}

func Test_Navigator_BackAndReset(t *testing.T) {
	t.Parallel()
	n := NewNavigator(NewTree(testRecords()))
	mustSelect := func(opt string) {
		t.Helper()
		if err := n.Select(opt); err != nil {
			t.Fatalf("select %q: %v", opt, err)
		}
	}
	mustSelect("Covers")
	mustSelect("Definitions")
	mustSelect("What counts as a cover?")

	n.Back()
	if n.State() != StateSubcategory {
		t.Errorf("after back: state = %s, want subcategory", n.State())
	}
	if _, ok := n.Article(); ok {
		t.Error("article still open after back")
	}
	n.Back()
	n.Back()
	if n.State() != StateHome {
		t.Errorf("state = %s, want home", n.State())
	}
	n.Back() // no-op at home
	if n.State() != StateHome {
		t.Error("back at home must be a no-op")
	}

	mustSelect("Waste")
	n.Reset()
	if n.State() != StateHome || len(n.Path()) != 0 {
		t.Errorf("reset: state = %s, path = %v", n.State(), n.Path())
	}
}
