package types

// Scope is the set of subscriptions and management groups a query runs against.
type Scope struct {
	Subscriptions    []string `yaml:"subscriptions" json:"subscriptions,omitempty" validate:"required_without=ManagementGroups,dive,guid"`
	ManagementGroups []string `yaml:"managementGroups" json:"managementGroups,omitempty" validate:"required_without=Subscriptions,dive,required"`
}

func (scope Scope) IsEmpty() bool {
	return len(scope.Subscriptions) == 0 && len(scope.ManagementGroups) == 0
}
