// Package parsing derives candidate fields from extracted CV text with
// ordered keyword and pattern scans.
package parsing

import (
	"regexp"
	"strings"

	"github.com/chiranSam/job-application-form/internal/models"
)

var (
	// +94 7X XXX XXXX or 07X XXX XXXX
	phonePattern = regexp.MustCompile(`\+\d{2}7\d{8}|07\d{8}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// lineRule collects every line containing one of its keywords
type lineRule struct {
	keywords []string
	assign   func(p *models.ParsedFields, value string)
}

// lineRules are evaluated independently, so one line may feed several fields
var lineRules = []lineRule{
	{
		keywords: []string{"BSc", "MSc", "PhD"},
		assign:   func(p *models.ParsedFields, v string) { p.Degree = v },
	},
	{
		keywords: []string{"University", "Institute", "College", "Academy"},
		assign:   func(p *models.ParsedFields, v string) { p.Education = v },
	},
	{
		keywords: []string{"Undergraduate", "Engineer", "Developer", "Tech Lead", "Project Manager"},
		assign:   func(p *models.ParsedFields, v string) { p.JobTitle = v },
	},
	{
		// Broad on purpose; lines outside a projects section will match too.
		keywords: []string{"Project", "System", "Application", "Website", "Platform", "Tool", "Portal", "Dashboard", "App", "Management"},
		assign:   func(p *models.ParsedFields, v string) { p.Projects = v },
	},
}

// SkillVocabulary is matched term by term against every line
var SkillVocabulary = []string{
	"Java", "JavaScript", "TypeScript", "Python", "PHP", "Laravel",
	"React", "Angular", "Vue", "Node.js", "Django", "Spring",
	"SQL", "MySQL", "PostgreSQL", "MongoDB", "HTML", "CSS",
	"Docker", "Kubernetes", "AWS", "Azure", "Git", "Linux",
	"C++", "C#", "Golang", "Kotlin", "Swift", "Flutter",
}

// Lines splits text into trimmed, non-empty lines, preserving order
func Lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Parse derives the eight candidate fields from text. It never fails;
// anything that cannot be derived is models.Placeholder.
func Parse(text string) models.ParsedFields {
	lines := Lines(text)
	fields := models.EmptyFields()

	fields.Name = parseName(lines)
	fields.Phone = firstMatch(lines, phonePattern)
	fields.Email = firstMatch(lines, emailPattern)

	for _, rule := range lineRules {
		var matched []string
		for _, line := range lines {
			if containsAny(line, rule.keywords) {
				matched = append(matched, line)
			}
		}
		rule.assign(&fields, joinOrPlaceholder(matched, models.LineDelimiter))
	}

	fields.Skills = joinOrPlaceholder(collectSkills(lines, SkillVocabulary), models.SkillDelimiter)

	return fields
}

func parseName(lines []string) string {
	if len(lines) == 0 {
		return models.Placeholder
	}
	second := ""
	if len(lines) > 1 {
		second = lines[1]
	}
	return strings.TrimSpace(lines[0] + " " + second)
}

func firstMatch(lines []string, re *regexp.Regexp) string {
	for _, line := range lines {
		if m := re.FindString(line); m != "" {
			return m
		}
	}
	return models.Placeholder
}

func containsAny(line string, keywords []string) bool {
	lower := strings.ToLower(line)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// collectSkills records vocabulary terms, not lines, in first-seen order
func collectSkills(lines, vocabulary []string) []string {
	seen := make(map[string]struct{})
	var skills []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, term := range vocabulary {
			if term == "" {
				continue
			}
			if _, ok := seen[term]; ok {
				continue
			}
			if strings.Contains(lower, strings.ToLower(term)) {
				seen[term] = struct{}{}
				skills = append(skills, term)
			}
		}
	}
	return skills
}

func joinOrPlaceholder(values []string, sep string) string {
	if len(values) == 0 {
		return models.Placeholder
	}
	return strings.Join(values, sep)
}
