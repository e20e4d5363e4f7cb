package coupon

// CriterionKind discriminates what a coupon criterion targets.
type CriterionKind string

const (
	CriterionAll      CriterionKind = "all"
	CriterionCategory CriterionKind = "category"
	CriterionTeacher  CriterionKind = "teacher"
	CriterionCourse   CriterionKind = "course"
	CriterionEbook    CriterionKind = "ebook"
)

// Direction tells whether a matching criterion includes or excludes the
// target from eligibility.
type Direction string

const (
	DirectionInclude Direction = "include"
	DirectionExclude Direction = "exclude"
)

// Criterion is one eligibility rule of a coupon. TargetID is empty for the
// "all" kind.
type Criterion struct {
	ID        string
	Kind      CriterionKind
	Direction Direction
	TargetID  string
}

// Target identifies a purchase target for eligibility evaluation. Unset
// fields are empty strings.
type Target struct {
	CourseID   string
	EbookID    string
	CategoryID string
	TeacherID  string
}

// Eligible reports whether the criteria set covers the purchase target.
// The target is eligible when at least one include criterion matches it and
// no exclude criterion does; any matching exclude wins over any include.
// An empty criteria set covers nothing: a coupon must carry at least one
// include row (typically "all") to apply anywhere.
func Eligible(criteria []Criterion, target Target) bool {
	var included, excluded bool
	for _, c := range criteria {
		if !c.matches(target) {
			continue
		}
		switch c.Direction {
		case DirectionInclude:
			included = true
		case DirectionExclude:
			excluded = true
		}
	}
	return included && !excluded
}

func (c Criterion) matches(t Target) bool {
	switch c.Kind {
	case CriterionAll:
		return true
	case CriterionCategory:
		return c.TargetID != "" && c.TargetID == t.CategoryID
	case CriterionTeacher:
		return c.TargetID != "" && c.TargetID == t.TeacherID
	case CriterionCourse:
		return c.TargetID != "" && c.TargetID == t.CourseID
	case CriterionEbook:
		return c.TargetID != "" && c.TargetID == t.EbookID
	default:
		return false
	}
}
