package library

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// NormalizeEmail trims and lowercases an address and checks its shape.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", invalid("email", "email is required")
	}
	if !emailPattern.MatchString(e) {
		return "", invalid("email", "email %q is not a valid address", email)
	}
	return e, nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "%s is required", field)
	}
	return nil
}

func validateBook(b *Book) error {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.ISBN = strings.TrimSpace(b.ISBN)

	for _, f := range []struct{ name, value string }{
		{"title", b.Title},
		{"author", b.Author},
		{"isbn", b.ISBN},
	} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}
	if b.Total < 1 {
		return invalid("total", "total copies must be at least 1")
	}
	if b.CategoryID <= 0 {
		return invalid("category_id", "category is required")
	}
	return nil
}

func validateCategory(c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	return required("name", c.Name)
}
