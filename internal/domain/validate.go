package domain

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a single site descriptor.
func (s Site) Validate() error {
	if err := validatorInstance().Struct(s); err != nil {
		return fmt.Errorf("site %q: %w", s.Name, err)
	}
	return nil
}

// ValidateSites checks every descriptor and that names are unique.
func ValidateSites(sites []Site) error {
	seen := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate site name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
