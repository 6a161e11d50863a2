// Package locator resolves semantic Page.Name references against a locator
// repository.
package locator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

// Type is the strategy a locator value is written in.
type Type string

// Locator types.
const (
	TypeCSS    Type = "css"
	TypeXPath  Type = "xpath"
	TypeText   Type = "text"
	TypeID     Type = "id"
	TypeButton Type = "button" // Alias for css
	TypeRole   Type = "role"
)

var typePrefixes = map[Type]string{
	TypeCSS:    "css=",
	TypeXPath:  "xpath=",
	TypeText:   "text=",
	TypeID:     "id=",
	TypeButton: "css=",
	TypeRole:   "role=",
}

// ParseType parses the Type column, case-insensitive.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := typePrefixes[t]; !ok {
		return "", fmt.Errorf("unknown locator type %q", s)
	}
	return t, nil
}

// Record is one row of the locator repository.
type Record struct {
	Page      string
	Name      string
	Primary   string
	Secondary string
	Type      Type
}

// Reference returns the Page.Name form of the record key.
func (r Record) Reference() string {
	return r.Page + "." + r.Name
}

// Selector renders the primary value with its type prefix.
func (r Record) Selector() string {
	return render(r.Type, r.Primary)
}

// Candidates returns the rendered selectors, primary first. The secondary is
// omitted when blank.
func (r Record) Candidates() []string {
	out := []string{r.Selector()}
	if strings.TrimSpace(r.Secondary) != "" {
		out = append(out, render(r.Type, r.Secondary))
	}
	return out
}

// Locator converts the record to the form handed to executors.
func (r Record) Locator() *core.Locator {
	l := &core.Locator{
		Reference: r.Reference(),
		Type:      string(r.Type),
		Primary:   r.Selector(),
	}
	if strings.TrimSpace(r.Secondary) != "" {
		l.Secondary = render(r.Type, r.Secondary)
	}
	return l
}

func render(t Type, value string) string {
	value = strings.TrimSpace(value)
	for _, prefix := range typePrefixes {
		if strings.HasPrefix(value, prefix) {
			return value
		}
	}
	return typePrefixes[t] + value
}

type key struct {
	page string
	name string
}

// Repository is an immutable, read-only set of locator records keyed by
// (Page, Name). It is safe for concurrent use.
type Repository struct {
	records map[key]Record
}

// New builds a repository. A repeated (Page, Name) pair fails with
// core.ErrDuplicateLocator.
func New(records []Record) (*Repository, error) {
	repo := &Repository{records: make(map[key]Record, len(records))}
	for _, r := range records {
		r.Page = strings.TrimSpace(r.Page)
		r.Name = strings.TrimSpace(r.Name)
		if r.Page == "" || r.Name == "" {
			return nil, core.ErrMalformedTable.WithMessagef("locator record needs Page and Name (got %q)", r.Reference())
		}
		if _, ok := typePrefixes[r.Type]; !ok {
			return nil, core.ErrMalformedTable.WithMessagef("locator %s: unknown type %q", r.Reference(), r.Type)
		}
		k := key{r.Page, r.Name}
		if _, exists := repo.records[k]; exists {
			return nil, core.ErrDuplicateLocator.
				WithMessagef("duplicate locator: %s", r.Reference()).
				WithDetails(map[string]interface{}{"locator": r.Reference()})
		}
		repo.records[k] = r
	}
	return repo, nil
}

// Empty returns a repository with no records.
func Empty() *Repository {
	return &Repository{records: map[key]Record{}}
}

// Len returns the number of records.
func (r *Repository) Len() int {
	return len(r.records)
}

// Resolve looks up a Page.Name reference. The reference must contain exactly
// one '.' separating two non-empty halves.
func (r *Repository) Resolve(ref string) (Record, error) {
	page, name, ok := Split(ref)
	if !ok {
		return Record{}, core.ErrMalformedReference.
			WithMessagef("invalid locator format %q, expected PageName.LocatorName", ref).
			WithDetails(map[string]interface{}{"locator": ref})
	}
	rec, found := r.records[key{page, name}]
	if !found {
		return Record{}, core.ErrUnknownLocator.
			WithMessagef("locator not found: %s", ref).
			WithDetails(map[string]interface{}{"locator": ref})
	}
	return rec, nil
}

// References returns every Page.Name key, sorted.
func (r *Repository) References() []string {
	refs := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		refs = append(refs, rec.Reference())
	}
	sort.Strings(refs)
	return refs
}

// Split breaks ref into page and name.
func Split(ref string) (page, name string, ok bool) {
	if strings.Count(ref, ".") != 1 {
		return "", "", false
	}
	page, name, _ = strings.Cut(ref, ".")
	if page == "" || name == "" {
		return "", "", false
	}
	return page, name, true
}
