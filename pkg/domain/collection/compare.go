package collection

import "reflect"

// Comparison is the tri-state result of comparing two metadata
// revisions. Callers branch on all three outcomes: update a record in
// place (Equal), layer on top of an older one (Subset), or persist a
// new record (Incomparable).
type Comparison int

const (
	// Equal means the two metadata maps match attribute for attribute.
	Equal Comparison = iota
	// Subset means every entry of the older map is present, attribute
	// for attribute, in the newer one, which carries more.
	Subset
	// Incomparable means the older map holds at least one entry the
	// newer one lacks or contradicts.
	Incomparable
)

// String returns the string representation of the comparison result.
func (c Comparison) String() string {
	switch c {
	case Equal:
		return "equal"
	case Subset:
		return "subset"
	default:
		return "not equal and not subset"
	}
}

// CompareMetadata compares an older metadata revision against a newer
// one. Values are compared deeply so nested attribute blobs behave like
// their persisted forms.
func CompareMetadata(older, newer map[string]any) Comparison {
	for key, ov := range older {
		nv, ok := newer[key]
		if !ok || !reflect.DeepEqual(ov, nv) {
			return Incomparable
		}
	}
	if len(older) == len(newer) {
		return Equal
	}
	return Subset
}
