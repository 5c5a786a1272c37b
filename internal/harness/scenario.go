package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/covenanthq/covenant/internal/pact"
)

// Scenario defines a conformance test scenario: a group, a commitment set,
// and the settlement the solver must produce for them.
type Scenario struct {
	// Name uniquely identifies this scenario. Names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Group defines the group and its members.
	Group GroupSpec `yaml:"group"`

	// Commitments lists the commitment set to solve over.
	Commitments []CommitmentSpec `yaml:"commitments,omitempty"`

	// Expect describes the required solver outcome.
	Expect Expectation `yaml:"expect"`
}

// GroupSpec declares the group a scenario runs against.
type GroupSpec struct {
	ID      string       `yaml:"id"`
	Members []MemberSpec `yaml:"members"`
}

// MemberSpec is one group member.
type MemberSpec struct {
	User     string `yaml:"user"`
	Username string `yaml:"username,omitempty"`
}

// CommitmentSpec is the YAML form of a commitment.
type CommitmentSpec struct {
	ID      string          `yaml:"id"`
	Creator string          `yaml:"creator"`
	When    []ConditionSpec `yaml:"when,omitempty"`
	Promise []PromiseSpec   `yaml:"promise"`
}

// ConditionSpec is the YAML form of a condition. Omitting target makes it
// aggregate over every member except the creator.
type ConditionSpec struct {
	Target string     `yaml:"target,omitempty"`
	Action string     `yaml:"action"`
	Unit   string     `yaml:"unit"`
	Min    yamlAmount `yaml:"min"`
}

// PromiseSpec is the YAML form of a promise.
type PromiseSpec struct {
	Action    string      `yaml:"action"`
	Unit      string      `yaml:"unit"`
	Base      yamlAmount  `yaml:"base,omitempty"`
	Rate      yamlAmount  `yaml:"rate,omitempty"`
	Reference *RefSpec    `yaml:"reference,omitempty"`
	Threshold yamlAmount  `yaml:"threshold,omitempty"`
	Cap       *yamlAmount `yaml:"cap,omitempty"`
}

// RefSpec is the YAML form of a reference slot. Omitting user makes the
// reference group-wide.
type RefSpec struct {
	User   string `yaml:"user,omitempty"`
	Action string `yaml:"action"`
	Unit   string `yaml:"unit"`
}

// Expectation describes the required solver outcome.
type Expectation struct {
	// Diverges marks a scenario whose commitment set must NOT converge.
	// Such scenarios expect a convergence error and no liabilities.
	Diverges bool `yaml:"diverges,omitempty"`

	// Iterations, when positive, is the exact iteration count required.
	Iterations int `yaml:"iterations,omitempty"`

	// Liabilities is the complete expected settlement, ordered by user,
	// action, unit. An absent list means the settlement must be empty.
	Liabilities []LiabilitySpec `yaml:"liabilities,omitempty"`
}

// LiabilitySpec is one expected settlement record.
type LiabilitySpec struct {
	User   string     `yaml:"user"`
	Action string     `yaml:"action"`
	Unit   string     `yaml:"unit"`
	Amount yamlAmount `yaml:"amount"`

	// Effective, when present, is the exact sorted set of commitment ids
	// justifying the amount. When absent the id set is not checked.
	Effective []string `yaml:"effective,omitempty"`
}

// yamlAmount parses YAML scalars through the exact decimal parser so
// fractional amounts never pass through float64.
type yamlAmount pact.Amount

func (a *yamlAmount) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("amount must be a scalar: %w", err)
	}
	parsed, err := pact.ParseAmount(s)
	if err != nil {
		return err
	}
	*a = yamlAmount(parsed)
	return nil
}

func (a yamlAmount) amount() pact.Amount {
	return pact.Amount(a)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes with strict field validation
// (catches typos like "expect:" vs "expects:").
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Group.ID == "" {
		return fmt.Errorf("group.id is required")
	}
	if len(s.Group.Members) == 0 {
		return fmt.Errorf("group.members is required and must be non-empty")
	}
	for i, m := range s.Group.Members {
		if m.User == "" {
			return fmt.Errorf("group.members[%d].user is required", i)
		}
	}
	for i, c := range s.Commitments {
		if c.ID == "" {
			return fmt.Errorf("commitments[%d].id is required", i)
		}
		if c.Creator == "" {
			return fmt.Errorf("commitments[%d].creator is required", i)
		}
		if len(c.Promise) == 0 {
			return fmt.Errorf("commitments[%d].promise is required and must be non-empty", i)
		}
	}
	if s.Expect.Diverges && len(s.Expect.Liabilities) > 0 {
		return fmt.Errorf("expect.diverges and expect.liabilities are mutually exclusive")
	}
	return nil
}

// members converts the group spec to engine member ids.
func (s *Scenario) members() []pact.UserID {
	out := make([]pact.UserID, len(s.Group.Members))
	for i, m := range s.Group.Members {
		out[i] = pact.UserID(m.User)
	}
	return out
}

// commitments converts the YAML commitment specs to domain commitments.
func (s *Scenario) commitments() []pact.Commitment {
	out := make([]pact.Commitment, len(s.Commitments))
	for i, spec := range s.Commitments {
		c := pact.Commitment{
			ID:      spec.ID,
			Creator: pact.UserID(spec.Creator),
		}
		for _, cond := range spec.When {
			c.Conditions = append(c.Conditions, pact.Condition{
				Target: pact.UserID(cond.Target),
				Action: cond.Action,
				Unit:   cond.Unit,
				Min:    cond.Min.amount(),
			})
		}
		for _, p := range spec.Promise {
			promise := pact.Promise{
				Action:    p.Action,
				Unit:      p.Unit,
				Base:      p.Base.amount(),
				Rate:      p.Rate.amount(),
				Threshold: p.Threshold.amount(),
			}
			if p.Reference != nil {
				promise.Reference = &pact.SlotRef{
					User:   pact.UserID(p.Reference.User),
					Action: p.Reference.Action,
					Unit:   p.Reference.Unit,
				}
			}
			if p.Cap != nil {
				capAmount := p.Cap.amount()
				promise.Cap = &capAmount
			}
			c.Promises = append(c.Promises, promise)
		}
		out[i] = c
	}
	return out
}
