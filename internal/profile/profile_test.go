package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `{
	"personal_info": {
		"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com", "phone": "+44 20 7946 0000",
		"address": {"city": "London", "state": "England"}
	},
	"professional_links": {"linkedin": "https://linkedin.com/in/ada", "github": "https://github.com/ada"},
	"work_authorization": {"authorized_to_work": true, "requires_sponsorship": true},
	"preferences": {"salary_expectation": "120000", "notice_period": "2 weeks"},
	"education": [
		{"degree": "BSc", "field_of_study": "Mathematics", "institution": "University of London", "graduation_year": "1835"},
		{"degree": "A-Level", "field_of_study": "Maths", "institution": "Home", "graduation_year": "1830"}
	],
	"work_experience": [{"title": "Analyst", "company": "Analytical Engine Co", "start_date": "1842", "end_date": "Present"}],
	"skills": {
		"languages": ["Go", "Python", "SQL", "Rust"],
		"tools": ["Docker", "Kubernetes"],
		"cloud": ["GCP", "AWS", "Azure", "OCI"],
		"soft": ["Writing", "Mentoring", "Planning"]
	},
	"common_questions": {"why_us": "I like engines."},
	"diversity_info": {"pronouns": "she/her", "veteran_status": "No"},
	"cover_letter": "Dear hiring team,",
	"certifications": ["CKA"]
}`

func TestParse_PreservesUnknownKeys(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", p.FullName())
	assert.Equal(t, "London", p.PersonalInfo.Address.City)
	require.Len(t, p.Education, 2)
	assert.Equal(t, []any{"CKA"}, p.Extra["certifications"])
	assert.NotContains(t, p.Extra, "personal_info")
	require.NoError(t, p.Validate())
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"personal_info": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.PersonalInfo.Email)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		info    PersonalInfo
		wantErr []string
	}{
		{"complete", PersonalInfo{FirstName: "Ada", LastName: "L", Email: "a.l@example.co.uk"}, nil},
		{"missing everything", PersonalInfo{}, []string{"First name is missing", "Last name is missing", "Email is missing"}},
		{"blank names", PersonalInfo{FirstName: "  ", LastName: "L", Email: "a@b.io"}, []string{"First name is missing"}},
		{"bad email", PersonalInfo{FirstName: "A", LastName: "L", Email: "not-an-email"}, []string{"Email format is invalid"}},
		{"email without tld", PersonalInfo{FirstName: "A", LastName: "L", Email: "a@localhost"}, []string{"Email format is invalid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Profile{PersonalInfo: tt.info}).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidProfile)
			for _, msg := range tt.wantErr {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestCondense(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	c := p.Condense()
	assert.Equal(t, "Ada Lovelace", c["name"])
	assert.Equal(t, "London, England", c["location"])
	assert.Equal(t, "https://github.com/ada", c["github"])
	assert.Equal(t, "", c["portfolio"])
	assert.Equal(t, true, c["needs_sponsorship"])
	assert.Equal(t, true, c["willing_to_relocate"], "defaults apply to absent keys")
	assert.Equal(t, "Immediately", c["start_date"])
	assert.Equal(t, "BSc in Mathematics from University of London (1835)", c["education"])
	assert.Equal(t, "Analyst at Analytical Engine Co (1842 - Present)", c["current_role"])
	assert.Equal(t, "GCP, AWS, Azure, Go, Python, SQL, Writing, Mentoring, Planning, Docker", c["key_skills"])
	assert.Equal(t, map[string]string{"why_us": "I like engines."}, c["prepared_answers"])
	assert.Equal(t, "she/her", c["pronouns"])
	assert.Equal(t, "", c["gender"])
	assert.Equal(t, "Dear hiring team,", c["cover_letter"])
	assert.Equal(t, []any{"CKA"}, c["certifications"])
}

func TestCondense_Minimal(t *testing.T) {
	p := &Profile{PersonalInfo: PersonalInfo{FirstName: "Ada", Email: "ada@example.com"}}
	c := p.Condense()

	assert.Equal(t, "Ada", c["name"])
	assert.Equal(t, "", c["location"])
	assert.Equal(t, "", c["key_skills"])
	assert.NotContains(t, c, "education")
	assert.NotContains(t, c, "prepared_answers")
	assert.NotContains(t, c, "pronouns")
	assert.NotContains(t, c, "cover_letter")
}
