// Package rolefields holds the per-role profile field schema shared by the
// registration wizard and the profile completion flow.
package rolefields

import "sort"

// Kind is the input/validation kind of a role field.
type Kind string

const (
	KindUniversity Kind = "university"
	KindText       Kind = "text"
	KindDegree     Kind = "degree"
	KindDropdown   Kind = "dropdown"
	KindTel        Kind = "tel"
	KindURL        Kind = "url"
)

// Role tags.
const (
	RoleStudent   = "student"
	RoleAlumni    = "alumni"
	RoleMentor    = "mentor"
	RoleRecruiter = "recruiter"
	RoleDonor     = "donor"
)

// Sentinel values a selector resolves to when the user picks "other" and types
// their own value into the sibling free-text input.
const (
	UniversityOther = "__other__"
	DegreeOther     = "__other__"
	LiteralOther    = "Other"
)

// FieldSpec describes one of the three role-specific fields.
type FieldSpec struct {
	Key           string   `json:"key"`
	Kind          Kind     `json:"kind"`
	Label         string   `json:"label"`
	Placeholder   string   `json:"placeholder,omitempty"`
	Options       []string `json:"options,omitempty"`
	Optional      bool     `json:"optional"`
	OtherSentinel string   `json:"otherSentinel,omitempty"`
}

// HasOther reports whether the field resolves through a free-text "other" input.
func (f FieldSpec) HasOther() bool {
	return f.OtherSentinel != ""
}

// RoleSpec is the catalog entry for a role.
type RoleSpec struct {
	Role      string       `json:"role"`
	RoleLabel string       `json:"roleLabel"`
	Fields    [3]FieldSpec `json:"fields"`
}

var universities = []string{
	"University of Washington",
	"Seattle University",
	"Seattle Pacific University",
	"Washington State University",
	"Western Washington University",
	UniversityOther,
}

var degrees = []string{
	"Computer Science",
	"Business Administration",
	"Engineering",
	"Nursing",
	"Psychology",
	"Economics",
}

func universityField() FieldSpec {
	return FieldSpec{
		Key:           "field1",
		Kind:          KindUniversity,
		Label:         "University",
		Placeholder:   "Select your university",
		Options:       universities,
		OtherSentinel: UniversityOther,
	}
}

var catalog = map[string]RoleSpec{
	RoleStudent: {
		Role:      RoleStudent,
		RoleLabel: "Student",
		Fields: [3]FieldSpec{
			universityField(),
			{
				Key:           "field2",
				Kind:          KindDegree,
				Label:         "Degree Program",
				Options:       append(append([]string{}, degrees...), LiteralOther),
				OtherSentinel: LiteralOther,
			},
			{Key: "field3", Kind: KindTel, Label: "Phone Number", Placeholder: "+1 206 555 0100", Optional: true},
		},
	},
	RoleAlumni: {
		Role:      RoleAlumni,
		RoleLabel: "Alumni",
		Fields: [3]FieldSpec{
			universityField(),
			{
				Key:           "field2",
				Kind:          KindDegree,
				Label:         "Degree Earned",
				Options:       append(append([]string{}, degrees...), DegreeOther),
				OtherSentinel: DegreeOther,
			},
			{Key: "field3", Kind: KindURL, Label: "LinkedIn Profile", Placeholder: "https://linkedin.com/in/you", Optional: true},
		},
	},
	RoleMentor: {
		Role:      RoleMentor,
		RoleLabel: "Mentor",
		Fields: [3]FieldSpec{
			{Key: "field1", Kind: KindText, Label: "Company / Organization", Placeholder: "Where do you work?"},
			{
				Key:           "field2",
				Kind:          KindDropdown,
				Label:         "Area of Expertise",
				Options:       []string{"Software", "Finance", "Healthcare", "Education", "Design", LiteralOther},
				OtherSentinel: LiteralOther,
			},
			{Key: "field3", Kind: KindURL, Label: "LinkedIn Profile", Placeholder: "https://linkedin.com/in/you", Optional: true},
		},
	},
	RoleRecruiter: {
		Role:      RoleRecruiter,
		RoleLabel: "Recruiter",
		Fields: [3]FieldSpec{
			{Key: "field1", Kind: KindText, Label: "Company Name", Placeholder: "Company you hire for"},
			{Key: "field2", Kind: KindText, Label: "Job Title", Placeholder: "e.g. Talent Partner"},
			{Key: "field3", Kind: KindURL, Label: "Company Website", Placeholder: "https://example.com"},
		},
	},
	RoleDonor: {
		Role:      RoleDonor,
		RoleLabel: "Donor",
		Fields: [3]FieldSpec{
			{Key: "field1", Kind: KindText, Label: "Organization or Foundation", Placeholder: "Name shown on donations"},
			{
				Key:           "field2",
				Kind:          KindDropdown,
				Label:         "Preferred Support Area",
				Options:       []string{"Tuition", "Housing", "Food Security", "Books & Supplies", LiteralOther},
				OtherSentinel: LiteralOther,
			},
			{Key: "field3", Kind: KindTel, Label: "Contact Phone", Placeholder: "+1 206 555 0100", Optional: true},
		},
	},
}

// Lookup returns the catalog entry for role.
func Lookup(role string) (RoleSpec, bool) {
	spec, ok := catalog[role]
	return spec, ok
}

// IsValidRole reports whether role is in the catalog.
func IsValidRole(role string) bool {
	_, ok := catalog[role]
	return ok
}

// Roles returns the role tags in stable order.
func Roles() []string {
	roles := make([]string, 0, len(catalog))
	for r := range catalog {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// All returns every catalog entry ordered by role tag.
func All() []RoleSpec {
	out := make([]RoleSpec, 0, len(catalog))
	for _, r := range Roles() {
		out = append(out, catalog[r])
	}
	return out
}
