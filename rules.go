package mapdiff

import (
	"sort"

	"github.com/bsm/mapdiff/container"
	"github.com/pkg/errors"
)

// Rule is a tag/value pair a type code stands for.
type Rule struct {
	Tag, Value string
}

// RuleTable maps type codes to rules. Codes start at 1 and, once bound,
// always keep their rule.
type RuleTable struct {
	byCode map[uint32]Rule
	byRule map[Rule]uint32
	max    uint32
}

// NewRuleTable returns an empty table.
func NewRuleTable() *RuleTable {
	return &RuleTable{
		byCode: make(map[uint32]Rule),
		byRule: make(map[Rule]uint32),
	}
}

func ruleTableOf(rules []container.Rule) (*RuleTable, error) {
	t := NewRuleTable()
	for _, r := range rules {
		if err := t.Register(r.Code, r.Tag, r.Value); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register binds code to tag=value. Binding a code to a second, different
// rule is an error.
func (t *RuleTable) Register(code uint32, tag, value string) error {
	if code == 0 {
		return errors.New("mapdiff: rule code 0 is reserved")
	}

	rule := Rule{Tag: tag, Value: value}
	if prev, ok := t.byCode[code]; ok {
		if prev != rule {
			return errors.Errorf("mapdiff: rule code %d already bound to %s=%s", code, prev.Tag, prev.Value)
		}
		return nil
	}

	t.byCode[code] = rule
	if _, ok := t.byRule[rule]; !ok {
		t.byRule[rule] = code
	}
	if code > t.max {
		t.max = code
	}
	return nil
}

// Add returns the code of tag=value, allocating MaxCode()+1 when the rule is
// not yet known.
func (t *RuleTable) Add(tag, value string) uint32 {
	if code, ok := t.Code(tag, value); ok {
		return code
	}

	code := t.max + 1
	_ = t.Register(code, tag, value)
	return code
}

// Lookup returns the rule bound to code.
func (t *RuleTable) Lookup(code uint32) (Rule, bool) {
	r, ok := t.byCode[code]
	return r, ok
}

// Code returns the code of tag=value.
func (t *RuleTable) Code(tag, value string) (uint32, bool) {
	code, ok := t.byRule[Rule{Tag: tag, Value: value}]
	return code, ok
}

// MaxCode returns the highest bound code, 0 for an empty table.
func (t *RuleTable) MaxCode() uint32 { return t.max }

// Len returns the number of bound codes.
func (t *RuleTable) Len() int { return len(t.byCode) }

// Rules returns all bindings ordered by code.
func (t *RuleTable) Rules() []container.Rule {
	rules := make([]container.Rule, 0, len(t.byCode))
	for code, r := range t.byCode {
		rules = append(rules, container.Rule{Code: code, Tag: r.Tag, Value: r.Value})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Code < rules[j].Code })
	return rules
}

// AdoptCode translates code from one table into another. Tables that are
// the same need no translation; otherwise the rule is looked up in to and
// added there when missing.
func AdoptCode(code uint32, from, to *RuleTable) (uint32, error) {
	if from == to {
		return code, nil
	}

	rule, ok := from.Lookup(code)
	if !ok {
		return 0, errors.Errorf("mapdiff: unknown rule code %d", code)
	}
	return to.Add(rule.Tag, rule.Value), nil
}
