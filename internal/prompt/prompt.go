// Package prompt maps role identifiers to the instruction templates that
// frame a schema description for a text-generation model.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/sahilm/fuzzy"
)

// Role selects one instruction template
type Role string

// Known roles
const (
	BusinessAnalyst Role = "business_analyst"
	DataModeler     Role = "data_modeler"
	UMLModeler      Role = "uml_modeler"
)

var roles = []Role{BusinessAnalyst, DataModeler, UMLModeler}

// ErrUnknownRole is matched by every ConfigurationError
var ErrUnknownRole = errors.New("unknown role")

//go:embed templates/*.tmpl
var templateFS embed.FS

// ConfigurationError reports a role identifier outside the known set
type ConfigurationError struct {
	Role       string
	Suggestion Role // closest known role, empty if nothing is close
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("unknown role %q (known roles: %s)", e.Role, strings.Join(RoleNames(), ", "))
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; did you mean %q?", e.Suggestion)
	}
	return msg
}

// Is makes errors.Is(err, ErrUnknownRole) hold
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrUnknownRole
}

// Roles lists the known roles
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// RoleNames lists the known role identifiers
func RoleNames() []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

func (r Role) String() string { return string(r) }

// ParseRole resolves an identifier. Matching is exact; unknown identifiers
// fail with *ConfigurationError.
func ParseRole(s string) (Role, error) {
	for _, r := range roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", &ConfigurationError{Role: s, Suggestion: suggest(s)}
}

// Template returns the role's template text with its {{.TableInfo}} slot unbound
func Template(r Role) (string, error) {
	if _, err := ParseRole(string(r)); err != nil {
		return "", err
	}
	data, err := templateFS.ReadFile("templates/" + string(r) + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("failed to read template for %s: %w", r, err)
	}
	return string(data), nil
}

// Render binds tableInfo into the role's template
func Render(r Role, tableInfo string) (string, error) {
	text, err := Template(r)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(string(r)).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template for %s: %w", r, err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, struct{ TableInfo string }{tableInfo}); err != nil {
		return "", fmt.Errorf("failed to render template for %s: %w", r, err)
	}
	return sb.String(), nil
}

// roleSource implements fuzzy.Source over the known roles
type roleSource []Role

func (s roleSource) String(i int) string { return string(s[i]) }
func (s roleSource) Len() int            { return len(s) }

// suggest finds the known role closest to s. Abbreviations match as
// subsequences of a role; misspellings with extra letters match when a role
// is a subsequence of s.
func suggest(s string) Role {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return ""
	}

	if matches := fuzzy.FindFrom(lower, roleSource(roles)); len(matches) > 0 {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
		return roles[matches[0].Index]
	}

	for _, r := range roles {
		if len(fuzzy.Find(string(r), []string{lower})) > 0 {
			return r
		}
	}
	return ""
}
