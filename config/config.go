package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/azure/resource-graph-catalog-ingester/azure"
	"github.com/azure/resource-graph-catalog-ingester/mapping"
	"github.com/azure/resource-graph-catalog-ingester/pager"
	"github.com/azure/resource-graph-catalog-ingester/types"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

const (
	ProviderNamePrefix = "azure-resource-graph"

	DefaultScheduleFrequency = time.Hour
	DefaultScheduleTimeout   = 10 * time.Minute
)

// ConfigurationError is returned for provider definitions that cannot be
// used. It is raised before any network activity.
type ConfigurationError struct {
	ProviderID string
	Err        error
}

func (err *ConfigurationError) Error() string {
	if err.ProviderID == "" {
		return fmt.Sprintf("invalid provider configuration: %v", err.Err)
	}
	return fmt.Sprintf("invalid configuration for provider %q: %v", err.ProviderID, err.Err)
}

func (err *ConfigurationError) Unwrap() error {
	return err.Err
}

// Schedule is carried for the scheduler that invokes runs. Only Timeout is
// enforced by this module.
type Schedule struct {
	Frequency time.Duration
	Timeout   time.Duration
}

// ProviderConfig is the validated, immutable configuration of one provider.
type ProviderConfig struct {
	ID                       string           `yaml:"id" validate:"required"`
	Query                    string           `yaml:"query" validate:"required"`
	Scope                    types.Scope      `yaml:"scope"`
	Schedule                 Schedule         `yaml:"-" validate:"-"`
	Mapping                  *mapping.Program `yaml:"-" validate:"-"`
	DefaultOwner             string           `yaml:"defaultOwner"`
	OwnerTag                 string           `yaml:"ownerTag"`
	MaxPages                 int              `yaml:"maxPages" validate:"min=1"`
	IgnoreResourceIDPatterns []*regexp.Regexp `yaml:"-" validate:"-"`
}

// ProviderName identifies the provider towards the scheduler and registry.
func (providerConfig *ProviderConfig) ProviderName() string {
	return ProviderNamePrefix + "-" + providerConfig.ID
}

// LocationKey scopes the provider's entities in the registry.
func (providerConfig *ProviderConfig) LocationKey() string {
	return providerConfig.ProviderName() + ":" + providerConfig.ID
}

// RawProvider is a provider definition as written in the config file.
type RawProvider struct {
	ID                       string         `yaml:"id"`
	Query                    string         `yaml:"query"`
	Scope                    types.Scope    `yaml:"scope"`
	Schedule                 RawSchedule    `yaml:"schedule"`
	Mapping                  map[string]any `yaml:"mapping"`
	DefaultOwner             string         `yaml:"defaultOwner"`
	OwnerTag                 string         `yaml:"ownerTag"`
	MaxPages                 *int           `yaml:"maxPages"`
	IgnoreResourceIDPatterns []string       `yaml:"ignoreResourceIdPatterns"`
}

type RawSchedule struct {
	Frequency string `yaml:"frequency"`
	Timeout   string `yaml:"timeout"`
}

type File struct {
	Cloud     string        `yaml:"cloud"`
	PageSize  int32         `yaml:"pageSize"`
	Providers []RawProvider `yaml:"providers"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Subscription ids follow the GUID format and may not be the empty GUID.
	_ = v.RegisterValidation("guid", func(fl validator.FieldLevel) bool {
		return azure.IsSubscriptionID(fl.Field().String())
	})
	return v
}

// NewProviderConfig applies defaults to raw and validates the result. Every
// mapping expression is parsed here so that runs cannot fail on them later.
func NewProviderConfig(raw RawProvider) (*ProviderConfig, error) {
	providerConfig := &ProviderConfig{
		ID:           strings.TrimSpace(raw.ID),
		Query:        strings.TrimSpace(raw.Query),
		Scope:        raw.Scope,
		DefaultOwner: raw.DefaultOwner,
		OwnerTag:     raw.OwnerTag,
		MaxPages:     pager.DefaultMaxPages,
	}
	if raw.MaxPages != nil {
		providerConfig.MaxPages = *raw.MaxPages
	}

	configErr := func(err error) error {
		return &ConfigurationError{ProviderID: providerConfig.ID, Err: err}
	}

	if err := validate.Struct(providerConfig); err != nil {
		return nil, configErr(describeValidationErrors(err))
	}
	if providerConfig.Scope.IsEmpty() {
		return nil, configErr(errors.New("scope.subscriptions or scope.managementGroups must be provided"))
	}

	schedule, err := parseSchedule(raw.Schedule)
	if err != nil {
		return nil, configErr(err)
	}
	providerConfig.Schedule = schedule

	if raw.Mapping != nil {
		spec, err := value.FromAny(raw.Mapping)
		if err != nil {
			return nil, configErr(fmt.Errorf("mapping: %w", err))
		}
		program, err := mapping.Compile(spec)
		if err != nil {
			return nil, configErr(err)
		}
		providerConfig.Mapping = program
	}

	for _, pattern := range raw.IgnoreResourceIDPatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, configErr(fmt.Errorf("ignoreResourceIdPatterns: %w", err))
		}
		providerConfig.IgnoreResourceIDPatterns = append(providerConfig.IgnoreResourceIDPatterns, compiled)
	}

	return providerConfig, nil
}

func parseSchedule(raw RawSchedule) (Schedule, error) {
	schedule := Schedule{
		Frequency: DefaultScheduleFrequency,
		Timeout:   DefaultScheduleTimeout,
	}
	if raw.Frequency != "" {
		frequency, err := time.ParseDuration(raw.Frequency)
		if err != nil || frequency <= 0 {
			return schedule, fmt.Errorf("schedule.frequency %q is not a positive duration", raw.Frequency)
		}
		schedule.Frequency = frequency
	}
	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil || timeout <= 0 {
			return schedule, fmt.Errorf("schedule.timeout %q is not a positive duration", raw.Timeout)
		}
		schedule.Timeout = timeout
	}
	return schedule, nil
}

func describeValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := []error{}
	for _, fieldError := range validationErrors {
		field := strings.TrimPrefix(fieldError.Namespace(), "ProviderConfig.")
		switch fieldError.Tag() {
		case "required":
			messages = append(messages, fmt.Errorf("%s is required", field))
		case "required_without":
			messages = append(messages, fmt.Errorf("%s is required when %s is not set", field, fieldError.Param()))
		case "guid":
			messages = append(messages, fmt.Errorf("%s: invalid subscription id %q", field, fieldError.Value()))
		case "min":
			messages = append(messages, fmt.Errorf("%s must be at least %s", field, fieldError.Param()))
		default:
			messages = append(messages, fmt.Errorf("%s failed the %q rule", field, fieldError.Tag()))
		}
	}
	return errors.Join(messages...)
}

// Parse decodes a config document and builds every provider in it.
func Parse(data []byte) (*File, []*ProviderConfig, error) {
	file := &File{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, nil, &ConfigurationError{Err: err}
	}

	providers := []*ProviderConfig{}
	seen := map[string]bool{}
	for _, raw := range file.Providers {
		providerConfig, err := NewProviderConfig(raw)
		if err != nil {
			return nil, nil, err
		}
		if seen[providerConfig.ID] {
			return nil, nil, &ConfigurationError{ProviderID: providerConfig.ID, Err: errors.New("duplicate provider id")}
		}
		seen[providerConfig.ID] = true
		providers = append(providers, providerConfig)
	}
	return file, providers, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*File, []*ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Select returns the providers whose id is in ids, or all providers when ids
// is empty.
func Select(providers []*ProviderConfig, ids []string) ([]*ProviderConfig, error) {
	if len(ids) == 0 {
		return providers, nil
	}
	byID := map[string]*ProviderConfig{}
	for _, providerConfig := range providers {
		byID[providerConfig.ID] = providerConfig
	}
	selected := []*ProviderConfig{}
	for _, id := range ids {
		providerConfig, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("provider %q is not configured", id)
		}
		selected = append(selected, providerConfig)
	}
	return selected, nil
}
