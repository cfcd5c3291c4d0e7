package profile

import (
	"fmt"
	"sort"
	"strings"
)

const (
	skillsPerCategory = 3
	maxSkills         = 10
)

// Condense reduces the profile to the fields the oracle needs: identity,
// links, authorization, preferences, the most recent education and
// position, a capped skills list, prepared answers and demographics.
func (p *Profile) Condense() map[string]any {
	pi := p.PersonalInfo
	out := map[string]any{
		"name":     p.FullName(),
		"email":    pi.Email,
		"phone":    pi.Phone,
		"location": strings.Trim(pi.Address.City+", "+pi.Address.State, ", "),

		"linkedin":  p.Links["linkedin"],
		"github":    p.Links["github"],
		"portfolio": p.Links["portfolio"],

		"authorized_to_work":  lookup(p.WorkAuthorization, "authorized_to_work", true),
		"needs_sponsorship":   lookup(p.WorkAuthorization, "requires_sponsorship", false),
		"willing_to_relocate": lookup(p.WorkAuthorization, "willing_to_relocate", true),

		"salary_expectation":  lookup(p.Preferences, "salary_expectation", ""),
		"notice_period":       lookup(p.Preferences, "notice_period", ""),
		"start_date":          lookup(p.Preferences, "available_start_date", "Immediately"),
		"how_did_you_hear":    lookup(p.Preferences, "how_did_you_hear", "LinkedIn"),
		"preferred_work_type": lookup(p.Preferences, "preferred_work_type", "Remote"),
	}

	if len(p.Education) > 0 {
		ed := p.Education[0]
		out["education"] = fmt.Sprintf("%s in %s from %s (%s)", ed.Degree, ed.FieldOfStudy, ed.Institution, ed.GraduationYear)
	}
	if len(p.Experience) > 0 {
		exp := p.Experience[0]
		out["current_role"] = fmt.Sprintf("%s at %s (%s - %s)", exp.Title, exp.Company, exp.StartDate, exp.EndDate)
	}
	out["key_skills"] = strings.Join(p.keySkills(), ", ")

	if len(p.CommonAnswers) > 0 {
		out["prepared_answers"] = p.CommonAnswers
	}
	if len(p.Demographics) > 0 {
		for _, k := range []string{"pronouns", "gender", "ethnicity", "veteran_status", "disability_status"} {
			out[k] = p.Demographics[k]
		}
	}
	if p.CoverLetter != "" {
		out["cover_letter"] = p.CoverLetter
	}
	for k, v := range p.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// keySkills takes up to three skills from each category, categories in
// name order, capped at ten overall.
func (p *Profile) keySkills() []string {
	categories := make([]string, 0, len(p.Skills))
	for c := range p.Skills {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var skills []string
	for _, c := range categories {
		list := p.Skills[c]
		if len(list) > skillsPerCategory {
			list = list[:skillsPerCategory]
		}
		skills = append(skills, list...)
	}
	if len(skills) > maxSkills {
		skills = skills[:maxSkills]
	}
	return skills
}

func lookup(m map[string]any, key string, fallback any) any {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return fallback
}
