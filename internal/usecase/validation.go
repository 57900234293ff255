package usecase

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	maxNameLength = 200
	maxListValues = 25
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ValidateCreateLeadInput(input CreateLeadInput) []ValidationError {
	var errors []ValidationError

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if len(name) < 2 {
		errors = append(errors, ValidationError{"name", "must have at least 2 characters"})
	} else if len(name) > maxNameLength {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}

	if w := strings.TrimSpace(input.Website); w != "" && !isValidWebsite(w) {
		errors = append(errors, ValidationError{"website", "must be a valid http(s) URL or domain"})
	}

	lists := []struct {
		field  string
		values []string
	}{
		{"commodities", input.Commodities},
		{"equipment_types", input.EquipmentTypes},
		{"geographies", input.Geographies},
		{"tags", input.Tags},
	}
	for _, l := range lists {
		if len(l.values) > maxListValues {
			errors = append(errors, ValidationError{l.field, "must not exceed 25 values"})
		}
	}

	return errors
}

func joinValidationErrors(errs []ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+" ("+e.Message+")")
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func isValidWebsite(raw string) bool {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.Contains(u.Host, ".")
}

// normalizeList trims, drops blanks and de-duplicates case-insensitively.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
