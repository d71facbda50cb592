package domain

// Subcode classifies a budget line (salaries, supplies, ...).
type Subcode struct {
	Code  string `json:"code" yaml:"code" validate:"required,max=4"`
	Title string `json:"title" yaml:"title" validate:"required"`
	Notes string `json:"notes,omitempty" yaml:"notes"`
}

// SubcodeRegistry is an ordered subcode lookup table. The order is the order
// of the legend printed on each report sheet.
type SubcodeRegistry struct {
	entries []Subcode
	index   map[string]int
}

// NewSubcodeRegistry builds a registry; later duplicates replace earlier ones
// in place.
func NewSubcodeRegistry(entries []Subcode) *SubcodeRegistry {
	r := &SubcodeRegistry{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if i, ok := r.index[e.Code]; ok {
			r.entries[i] = e
			continue
		}
		r.index[e.Code] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r
}

// Lookup returns the subcode entry for code.
func (r *SubcodeRegistry) Lookup(code string) (Subcode, bool) {
	i, ok := r.index[code]
	if !ok {
		return Subcode{}, false
	}
	return r.entries[i], true
}

// Entries returns the registry in legend order.
func (r *SubcodeRegistry) Entries() []Subcode {
	out := make([]Subcode, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of entries.
func (r *SubcodeRegistry) Len() int {
	return len(r.entries)
}

// DefaultSubcodes is the subcode table used by Library Business Services.
func DefaultSubcodes() []Subcode {
	return []Subcode{
		{Code: "00", Title: "Salaries - Academic", Notes: "LBS will balance sub 00 fund 19900 at year end"},
		{Code: "01", Title: "Salaries - Staff", Notes: "LBS will balance sub 01 fund 19900 at year end"},
		{Code: "02", Title: "General Assistance", Notes: "Please use other (sub 02 only) LBS monthly report to track the allocations and expenditures"},
		{Code: "03", Title: "Supplies and Expense", Notes: "Includes travel"},
		{Code: "04", Title: "Equipment and Facilities"},
		{Code: "05", Title: "Books/Collections"},
		{Code: "06", Title: "Employee Benefits", Notes: "19900 benefits will be funded from the Library Reserve account at year end"},
		{Code: "07", Title: "Special Items"},
		{Code: "08", Title: "Unallocated Funds"},
		{Code: "09", Title: "Recharges and Departments"},
		{Code: "9H", Title: "Overhead (F&A)", Notes: "Apply to Contracts and Grants"},
	}
}
