package variant

import (
	"strings"

	"storefront/internal/domain"
)

// Expand computes the variant grid for options and carries admin-entered data over from
// previous.
//
// Only options with a name and at least one value take part, at most MaxVariantOptions of
// them. The first option's values form the outer loop. A new combination takes the data of
// the previous record with exactly the same attributes; failing that, of an unused previous
// record whose attributes are a subset or superset of the combination with every shared key
// agreeing. Anything else starts empty, and is the default only at index 0 when no carried
// record already is. At most one record ends up as the default.
func Expand(options []domain.VariantOption, previous []domain.VariantRecord) []domain.VariantRecord {
	combos := combinations(activeOptions(options))
	out := make([]domain.VariantRecord, len(combos))
	matched := make([]bool, len(combos))
	used := make([]bool, len(previous))

	for i, attrs := range combos {
		for j, prev := range previous {
			if !used[j] && prev.Attributes.Equal(attrs) {
				out[i] = carry(prev, attrs)
				matched[i], used[j] = true, true
				break
			}
		}
	}
	for i, attrs := range combos {
		if matched[i] {
			continue
		}
		for j, prev := range previous {
			if used[j] || len(prev.Attributes) == 0 {
				continue
			}
			if prev.Attributes.SubsetOf(attrs) || attrs.SubsetOf(prev.Attributes) {
				out[i] = carry(prev, attrs)
				matched[i], used[j] = true, true
				break
			}
		}
	}
	carriedDefault := false
	for i := range combos {
		if matched[i] && out[i].IsDefault {
			carriedDefault = true
		}
	}
	for i, attrs := range combos {
		if !matched[i] {
			out[i] = domain.VariantRecord{Attributes: attrs, IsDefault: i == 0 && !carriedDefault}
		}
	}

	seenDefault := false
	for i := range out {
		if out[i].IsDefault {
			if seenDefault {
				out[i].IsDefault = false
			}
			seenDefault = true
		}
	}
	return out
}

func activeOptions(options []domain.VariantOption) []domain.VariantOption {
	var active []domain.VariantOption
	names := make(map[string]bool, len(options))
	for _, o := range options {
		o.Values = cleanValues(o.Values)
		o.Name = strings.TrimSpace(o.Name)
		key := strings.ToLower(o.Name)
		if !o.Active() || names[key] {
			continue
		}
		names[key] = true
		active = append(active, o)
		if len(active) == domain.MaxVariantOptions {
			break
		}
	}
	return active
}

func combinations(options []domain.VariantOption) []domain.Attributes {
	if len(options) == 0 {
		return nil
	}
	combos := []domain.Attributes{{}}
	for _, o := range options {
		next := make([]domain.Attributes, 0, len(combos)*len(o.Values))
		for _, base := range combos {
			for _, v := range o.Values {
				attrs := base.Clone()
				attrs[o.Name] = v
				next = append(next, attrs)
			}
		}
		combos = next
	}
	return combos
}

func carry(prev domain.VariantRecord, attrs domain.Attributes) domain.VariantRecord {
	rec := cloneRecord(prev)
	rec.Attributes = attrs
	return rec
}

func cloneRecord(r domain.VariantRecord) domain.VariantRecord {
	r.Attributes = r.Attributes.Clone()
	if r.ID != nil {
		id := *r.ID
		r.ID = &id
	}
	if r.StockQuantity != nil {
		q := *r.StockQuantity
		r.StockQuantity = &q
	}
	return r
}

// cleanValues trims values and drops blanks and repeats, keeping first occurrences.
func cleanValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
