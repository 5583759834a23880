// Package browse implements the manual FAQ browsing mode: a small state
// machine over category → subcategory → question navigation. Browsing has
// no retrieval or generative component — it serves users who prefer to
// click through the knowledge base rather than ask free-text questions.
package browse

import (
	"fmt"

	"github.com/lightblue/fitbot-go/internal/faq"
)

// State identifies the current navigation level.
type State int

const (
	// StateHome lists the top-level categories.
	StateHome State = iota
	// StateCategory lists the subcategories of the selected category.
	StateCategory
	// StateSubcategory lists the questions under the selected subcategory.
	StateSubcategory
	// StateArticle shows a single question with its answer.
	StateArticle
)

// String implements fmt.Stringer for logging.
func (s State) String() string {
	switch s {
	case StateHome:
		return "home"
	case StateCategory:
		return "category"
	case StateSubcategory:
		return "subcategory"
	case StateArticle:
		return "article"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Article is one browsable FAQ entry.
type Article struct {
	// Question is the entry's question text.
	Question string
	// Answer is the entry's answer text.
	Answer string
}

// Tree is the immutable navigation structure built from FAQ records.
// Categories, subcategories, and questions keep first-seen source order so
// browsing matches the curated CSV ordering.
type Tree struct {
	categories []string
	subs       map[string][]string
	articles   map[string]map[string][]Article
}

// NewTree builds a Tree from FAQ records. Records without both Category and
// Subcategory are not browsable and are skipped; they remain reachable
// through retrieval.
func NewTree(records []faq.Record) *Tree {
	t := &Tree{
		subs:     make(map[string][]string),
		articles: make(map[string]map[string][]Article),
	}
	for _, r := range records {
		if r.Category == "" || r.Subcategory == "" {
			continue
		}
		if _, ok := t.articles[r.Category]; !ok {
			t.categories = append(t.categories, r.Category)
			t.articles[r.Category] = make(map[string][]Article)
		}
		if _, ok := t.articles[r.Category][r.Subcategory]; !ok {
			t.subs[r.Category] = append(t.subs[r.Category], r.Subcategory)
		}
		t.articles[r.Category][r.Subcategory] = append(
			t.articles[r.Category][r.Subcategory],
			Article{Question: r.Question, Answer: r.Answer},
		)
	}
	return t
}

// Categories returns the top-level category names in source order.
func (t *Tree) Categories() []string { return t.categories }

// Empty reports whether no records were browsable.
func (t *Tree) Empty() bool { return len(t.categories) == 0 }

// Navigator is a cursor over a Tree. It is not safe for concurrent use;
// each session owns its own Navigator.
type Navigator struct {
	tree        *Tree
	state       State
	category    string
	subcategory string
	article     *Article
}

// NewNavigator returns a Navigator positioned at home.
func NewNavigator(tree *Tree) *Navigator {
	return &Navigator{tree: tree}
}

// State returns the current navigation level.
func (n *Navigator) State() State { return n.state }

// Options returns the selectable choices at the current level: category
// names at home, subcategory names inside a category, and question texts
// inside a subcategory. At the article level there is nothing to select.
func (n *Navigator) Options() []string {
	switch n.state {
	case StateHome:
		return n.tree.categories
	case StateCategory:
		return n.tree.subs[n.category]
	case StateSubcategory:
		arts := n.tree.articles[n.category][n.subcategory]
		qs := make([]string, len(arts))
		for i, a := range arts {
			qs[i] = a.Question
		}
		return qs
	default:
		return nil
	}
}

// Select descends one level using the chosen option. The option must be one
// of the values returned by Options for the current state.
func (n *Navigator) Select(option string) error {
	switch n.state {
	case StateHome:
		if _, ok := n.tree.articles[option]; !ok {
			return fmt.Errorf("browse: unknown category %q", option)
		}
		n.category = option
		n.state = StateCategory
	case StateCategory:
		if _, ok := n.tree.articles[n.category][option]; !ok {
			return fmt.Errorf("browse: unknown subcategory %q in %q", option, n.category)
		}
		n.subcategory = option
		n.state = StateSubcategory
	case StateSubcategory:
		for i := range n.tree.articles[n.category][n.subcategory] {
			a := &n.tree.articles[n.category][n.subcategory][i]
			if a.Question == option {
				n.article = a
				n.state = StateArticle
				return nil
			}
		}
		return fmt.Errorf("browse: unknown question %q in %s/%s", option, n.category, n.subcategory)
	case StateArticle:
		return fmt.Errorf("browse: nothing to select at article level")
	}
	return nil
}

// Article returns the currently open entry. ok is false outside the
// article state.
func (n *Navigator) Article() (Article, bool) {
	if n.state != StateArticle || n.article == nil {
		return Article{}, false
	}
	return *n.article, true
}

// Back moves one level up. At home it is a no-op.
func (n *Navigator) Back() {
	switch n.state {
	case StateArticle:
		n.article = nil
		n.state = StateSubcategory
	case StateSubcategory:
		n.subcategory = ""
		n.state = StateCategory
	case StateCategory:
		n.category = ""
		n.state = StateHome
	}
}

// Reset returns directly to home, clearing all selections.
func (n *Navigator) Reset() {
	n.state = StateHome
	n.category = ""
	n.subcategory = ""
	n.article = nil
}

// Path returns the selections made so far, outermost first, for breadcrumb
// rendering.
func (n *Navigator) Path() []string {
	var path []string
	if n.category != "" {
		path = append(path, n.category)
	}
	if n.subcategory != "" {
		path = append(path, n.subcategory)
	}
	if n.article != nil {
		path = append(path, n.article.Question)
	}
	return path
}
