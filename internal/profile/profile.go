// Package profile loads the applicant's data and condenses it into the
// compact form the oracle prompt carries.
package profile

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
)

// ErrInvalidProfile is wrapped by every validation failure.
var ErrInvalidProfile = errors.New("invalid profile")

var emailRegex = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// Address is the applicant's postal address.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

// PersonalInfo holds the identity fields. First name, last name and email
// are required.
type PersonalInfo struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone,omitempty"`
	Address   Address `json:"address"`
}

// Education is one degree, most recent first.
type Education struct {
	Degree         string `json:"degree"`
	FieldOfStudy   string `json:"field_of_study"`
	Institution    string `json:"institution"`
	GraduationYear string `json:"graduation_year"`
}

// Experience is one position, most recent first.
type Experience struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Profile is the applicant record read from profile.json. Top-level keys
// this struct does not model are kept in Extra and passed to the prompt
// untouched.
type Profile struct {
	PersonalInfo      PersonalInfo        `json:"personal_info"`
	Links             map[string]string   `json:"professional_links,omitempty"`
	WorkAuthorization map[string]any      `json:"work_authorization,omitempty"`
	Preferences       map[string]any      `json:"preferences,omitempty"`
	Education         []Education         `json:"education,omitempty"`
	Experience        []Experience        `json:"work_experience,omitempty"`
	Skills            map[string][]string `json:"skills,omitempty"`
	CommonAnswers     map[string]string   `json:"common_questions,omitempty"`
	Demographics      map[string]string   `json:"diversity_info,omitempty"`
	CoverLetter       string              `json:"cover_letter,omitempty"`

	Extra map[string]any `json:"-"`
}

var knownKeys = map[string]struct{}{
	"personal_info": {}, "professional_links": {}, "work_authorization": {},
	"preferences": {}, "education": {}, "work_experience": {}, "skills": {},
	"common_questions": {}, "diversity_info": {}, "cover_letter": {},
}

// Load reads and parses the profile at path. A leading ~ is expanded.
// The result is not validated.
func Load(path string) (*Profile, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand profile path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes a profile document.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON in profile: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in profile: %w", err)
	}
	for k, v := range raw {
		if _, ok := knownKeys[k]; ok {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	return &p, nil
}

// Validate reports every missing required field and a malformed email in
// one error wrapping ErrInvalidProfile.
func (p *Profile) Validate() error {
	var problems []string
	required := []struct{ name, value string }{
		{"First name", p.PersonalInfo.FirstName},
		{"Last name", p.PersonalInfo.LastName},
		{"Email", p.PersonalInfo.Email},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.name+" is missing")
		}
	}
	if email := p.PersonalInfo.Email; email != "" && !emailRegex.MatchString(email) {
		problems = append(problems, "Email format is invalid")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
	}
	return nil
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.PersonalInfo.FirstName + " " + p.PersonalInfo.LastName)
}
