package host

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Filter selects elements for a send.
type Filter interface {
	Match(el Element) bool
	Describe() string
}

// Select returns the elements of doc matched by f, in document order.
func Select(doc Enumerator, f Filter) []Element {
	var out []Element
	for _, el := range doc.Elements() {
		if f.Match(el) {
			out = append(out, el)
		}
	}
	return out
}

// AllFilter matches every element.
type AllFilter struct{}

func (AllFilter) Match(Element) bool { return true }
func (AllFilter) Describe() string   { return "all" }

// CategoryFilter matches elements whose category is one of Categories.
type CategoryFilter struct {
	Categories []string
}

func (f CategoryFilter) Match(el Element) bool {
	c, ok := el.(Categorized)
	if !ok {
		return false
	}
	return slices.ContainsFunc(f.Categories, func(want string) bool {
		return strings.EqualFold(want, c.Category())
	})
}

func (f CategoryFilter) Describe() string {
	return "category in [" + strings.Join(f.Categories, ", ") + "]"
}

// Parameter filter operators.
const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpGreaterThan = "is greater than"
	OpLessThan    = "is less than"
)

// ParameterFilter matches elements whose named parameter satisfies
// Operator against Value. String comparisons ignore case; the ordering
// operators compare numerically and never match non-numeric values.
type ParameterFilter struct {
	Parameter string
	Operator  string
	Value     string
}

// NewParameterFilter validates the operator.
func NewParameterFilter(param, op, value string) (ParameterFilter, error) {
	switch op {
	case OpEquals, OpContains, OpGreaterThan, OpLessThan:
	default:
		return ParameterFilter{}, fmt.Errorf("unknown parameter operator %q", op)
	}
	return ParameterFilter{Parameter: param, Operator: op, Value: value}, nil
}

func (f ParameterFilter) Match(el Element) bool {
	p, ok := el.(Parameterized)
	if !ok {
		return false
	}
	have, ok := lookupFold(p.Parameters(), f.Parameter)
	if !ok {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return strings.EqualFold(have, f.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(have), strings.ToLower(f.Value))
	case OpGreaterThan, OpLessThan:
		h, err1 := strconv.ParseFloat(strings.TrimSpace(have), 64)
		w, err2 := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if f.Operator == OpGreaterThan {
			return h > w
		}
		return h < w
	default:
		return false
	}
}

func (f ParameterFilter) Describe() string {
	return fmt.Sprintf("%s %s %q", f.Parameter, f.Operator, f.Value)
}

func lookupFold(params map[string]string, name string) (string, bool) {
	if v, ok := params[name]; ok {
		return v, true
	}
	for k, v := range params {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// IDFilter matches an explicit list of handle ids.
type IDFilter struct {
	IDs []HandleID
}

func (f IDFilter) Match(el Element) bool {
	return slices.Contains(f.IDs, el.HandleID())
}

func (f IDFilter) Describe() string {
	return fmt.Sprintf("%d explicit ids", len(f.IDs))
}

// AllOf matches elements matched by every filter in it. An empty AllOf
// matches everything.
type AllOf []Filter

func (fs AllOf) Match(el Element) bool {
	for _, f := range fs {
		if !f.Match(el) {
			return false
		}
	}
	return true
}

func (fs AllOf) Describe() string {
	if len(fs) == 0 {
		return "all"
	}
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Describe()
	}
	return strings.Join(parts, " and ")
}
