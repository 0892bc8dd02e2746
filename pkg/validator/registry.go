// Package validator validates and normalises public form submissions.
package validator

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// ValidatorFunc is the signature for validator functions
// Takes a value and optional configuration, returns an error if validation fails
type ValidatorFunc func(value interface{}, config map[string]interface{}) error

// Registry holds registered validators
type Registry struct {
	validators map[string]ValidatorFunc
	mu         sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigits    = regexp.MustCompile(`[^\d]`)
)

// GetRegistry returns the singleton validator registry
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = &Registry{
			validators: make(map[string]ValidatorFunc),
		}
		defaultRegistry.registerBuiltins()
	})
	return defaultRegistry
}

// Register adds a validator to the registry
func (r *Registry) Register(name string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Get returns a validator by name
func (r *Registry) Get(name string) (ValidatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[name]
	return fn, ok
}

// Validate runs a named validator
func (r *Registry) Validate(name string, value interface{}, config map[string]interface{}) error {
	fn, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("validator '%s' not found", name)
	}
	return fn(value, config)
}

func (r *Registry) registerBuiltins() {
	r.Register("email", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		if !emailPattern.MatchString(str) {
			return fmt.Errorf("Please enter a valid email address")
		}
		return nil
	})

	r.Register("url", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		u, err := url.Parse(str)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("Please enter a valid URL")
		}
		return nil
	})

	r.Register("phone", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		digits := nonDigits.ReplaceAllString(str, "")
		if len(digits) < 5 || len(digits) > 15 {
			return fmt.Errorf("Please enter a valid phone number")
		}
		return nil
	})

	r.Register("regex", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		pattern, _ := config["pattern"].(string)
		if pattern == "" {
			return nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %v", err)
		}
		if !re.MatchString(str) {
			if msg, ok := config["message"].(string); ok && msg != "" {
				return fmt.Errorf("%s", msg)
			}
			return fmt.Errorf("value does not match required pattern")
		}
		return nil
	})

	r.Register("length", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok {
			return nil
		}
		length := len([]rune(str))
		if min, ok := config["min"].(float64); ok && length < int(min) {
			return fmt.Errorf("must be at least %d characters", int(min))
		}
		if max, ok := config["max"].(float64); ok && length > int(max) {
			return fmt.Errorf("must be at most %d characters", int(max))
		}
		return nil
	})

	r.Register("range", func(value interface{}, config map[string]interface{}) error {
		var num float64
		switch v := value.(type) {
		case float64:
			num = v
		case string:
			if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &num); err != nil {
				return fmt.Errorf("must be a number")
			}
		default:
			return nil
		}
		if min, ok := config["min"].(float64); ok && num < min {
			return fmt.Errorf("must be at least %g", min)
		}
		if max, ok := config["max"].(float64); ok && num > max {
			return fmt.Errorf("must be at most %g", max)
		}
		return nil
	})
}

// Register adds a validator to the default registry
func Register(name string, fn ValidatorFunc) {
	GetRegistry().Register(name, fn)
}

// Validate runs a named validator using the default registry
func Validate(name string, value interface{}, config map[string]interface{}) error {
	return GetRegistry().Validate(name, value, config)
}
