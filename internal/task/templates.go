package task

import "sort"

// Templates are named presets for recurring kinds of work.
var Templates = map[string]Input{
	"patient-referral": {
		Title:    "New Patient Referral",
		Notes:    "Review referral, Schedule initial consultation, Prepare case history",
		Priority: string(PriorityHigh),
		Category: string(CategoryClinical),
		Tag:      "#patient",
	},
	"research-review": {
		Title:    "Research Paper Review",
		Notes:    "Read abstract, Review methodology, Analyze results, Write summary",
		Priority: string(PriorityMedium),
		Category: string(CategoryResearch),
		Tag:      "#paper",
	},
	"conference-prep": {
		Title:    "Conference Preparation",
		Notes:    "Prepare abstract, Create presentation slides, Rehearse talk, Book travel",
		Priority: string(PriorityMedium),
		Category: string(CategoryResearch),
		Tag:      "#conference",
	},
	"family-event": {
		Title:    "Family Event",
		Notes:    "Plan activity, Confirm schedules, Make arrangements",
		Priority: string(PriorityLow),
		Category: string(CategoryHome),
		Tag:      "#family",
	},
}

func TemplateNames() []string {
	names := make([]string, 0, len(Templates))
	for name := range Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
