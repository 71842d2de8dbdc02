package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/interlock/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100-E101)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation
	ErrStructRule        = "E101" // struct tag rule failed

	// Behaviour errors (E102-E109)
	ErrDuplicateName  = "E102" // duplicate state or port
	ErrUnknownInitial = "E103" // initial state not declared
	ErrBadTransition  = "E104" // transition over undeclared port or state
	ErrBadGuard       = "E105" // unknown guard or guard data not read by the port
	ErrBadDataRef     = "E106" // data reference that does not resolve
	ErrBadResource    = "E107" // resource request for undeclared port
	ErrBadUpdate      = "E108" // update of an unknown port or non-int variable

	// Glue errors (E110-E119)
	ErrUnknownType      = "E110" // glue names an undeclared component type
	ErrUnknownPort      = "E111" // glue names an undeclared or non-enforceable port
	ErrMissingCauses    = "E112" // require without cause clauses
	ErrUnknownWireData  = "E113" // wire end names undeclared data
	ErrWireTypeMismatch = "E114" // wire ends disagree on data type

	// Instance errors (E120-E129)
	ErrInstancesUnknownType = "E120" // instances for undeclared type
	ErrInstancesNegative    = "E121" // negative instance count
	ErrNoCapacity           = "E122" // resource requested without declared capacity
)

var structValidate = validator.New()

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled descriptions against schema rules.
// Returns all errors found (does not fail-fast).
// Supports Behaviour, Component and System values.
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case *ir.Behaviour:
		return validateBehaviour(x, "")
	case ir.Behaviour:
		return validateBehaviour(&x, "")
	case *Component:
		return validateComponent(x, "")
	case *System:
		return validateSystem(x)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateSystem(sys *System) []ValidationError {
	var errs []ValidationError
	types := make(map[string]*ir.Behaviour, len(sys.Components))
	for _, c := range sys.Components {
		prefix := "component." + c.Behaviour.Type + "."
		errs = append(errs, validateComponent(c, prefix)...)
		types[c.Behaviour.Type] = c.Behaviour
	}

	for _, typ := range sortedKeys(sys.Instances) {
		n := sys.Instances[typ]
		if _, ok := types[typ]; !ok {
			errs = append(errs, ValidationError{
				Field:   "instances." + typ,
				Message: fmt.Sprintf("instances declared for unknown component type %q", typ),
				Code:    ErrInstancesUnknownType,
			})
		}
		if n < 0 {
			errs = append(errs, ValidationError{
				Field:   "instances." + typ,
				Message: fmt.Sprintf("instance count must not be negative, got %d", n),
				Code:    ErrInstancesNegative,
			})
		}
	}

	for _, c := range sys.Components {
		for _, port := range sortedKeys(c.Behaviour.Resources) {
			r := c.Behaviour.Resources[port]
			if _, ok := sys.Capacities[r.Resource]; !ok {
				errs = append(errs, ValidationError{
					Field:   "component." + c.Behaviour.Type + ".resources." + port,
					Message: fmt.Sprintf("resource %q has no declared capacity", r.Resource),
					Code:    ErrNoCapacity,
				})
			}
		}
	}

	if sys.Glue != nil {
		errs = append(errs, validateGlue(sys.Glue, types)...)
	}
	return errs
}

func validateComponent(c *Component, prefix string) []ValidationError {
	errs := validateBehaviour(c.Behaviour, prefix)
	b := c.Behaviour
	for i, u := range c.Updates {
		field := fmt.Sprintf("%supdates[%d]", prefix, i)
		if _, ok := b.Port(u.Port); !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("update for undeclared port %q", u.Port),
				Code:    ErrBadUpdate,
			})
		}
		if cur, ok := c.Variables[u.Variable]; ok {
			if _, isInt := ir.AsInt(cur); !isInt {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("variable %q is %s, only int variables can be updated", u.Variable, ir.TypeName(cur)),
					Code:    ErrBadUpdate,
				})
			}
		}
	}
	return errs
}

func validateBehaviour(b *ir.Behaviour, prefix string) []ValidationError {
	var errs []ValidationError

	// E101: struct tag rules
	if err := structValidate.Struct(b); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return append(errs, ValidationError{Field: prefix + "behaviour", Message: err.Error(), Code: ErrStructRule})
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   prefix + structField(fe.Namespace()),
				Message: ruleMessage(fe),
				Code:    ErrStructRule,
			})
		}
	}

	states := make(map[string]bool, len(b.States))
	for i, s := range b.States {
		// E102: duplicate state name
		if states[s] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%sstates[%d]", prefix, i),
				Message: fmt.Sprintf("duplicate state name: %q", s),
				Code:    ErrDuplicateName,
			})
		}
		states[s] = true
	}

	// E103: initial state must be declared
	if b.Initial != "" && !states[b.Initial] {
		errs = append(errs, ValidationError{
			Field:   prefix + "initial",
			Message: fmt.Sprintf("initial state %q is not declared", b.Initial),
			Code:    ErrUnknownInitial,
		})
	}

	ports := make(map[string]bool, len(b.Ports))
	for i, p := range b.Ports {
		if ports[p.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%sports[%d]", prefix, i),
				Message: fmt.Sprintf("duplicate port name: %q", p.ID),
				Code:    ErrDuplicateName,
			})
		}
		ports[p.ID] = true
	}

	for i, t := range b.Transitions {
		field := fmt.Sprintf("%stransitions[%d]", prefix, i)
		if !ports[t.Port] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("transition uses undeclared port %q", t.Port),
				Code:    ErrBadTransition,
			})
		}
		for _, s := range []string{t.From, t.To} {
			if !states[s] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("transition uses undeclared state %q", s),
					Code:    ErrBadTransition,
				})
			}
		}
		if t.Guard == "" {
			continue
		}
		g, ok := b.Guards[t.Guard]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("transition references unknown guard %q", t.Guard),
				Code:    ErrBadGuard,
			})
			continue
		}
		if !slices.Contains(b.GuardData[t.Port], g.Data) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("guard %q reads %q, which port %q does not list in guard_data", t.Guard, g.Data, t.Port),
				Code:    ErrBadGuard,
			})
		}
	}

	for _, d := range b.DataOut {
		for _, p := range d.Ports {
			if !ports[p] {
				errs = append(errs, ValidationError{
					Field:   prefix + "data_out." + d.Name,
					Message: fmt.Sprintf("data exported at undeclared port %q", p),
					Code:    ErrBadDataRef,
				})
			}
		}
	}

	for _, table := range []struct {
		name string
		m    map[string][]string
	}{{"guard_data", b.GuardData}, {"transition_data", b.TransitionData}} {
		for _, port := range sortedKeys(table.m) {
			field := prefix + table.name + "." + port
			if !ports[port] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("data needs declared for undeclared port %q", port),
					Code:    ErrBadDataRef,
				})
			}
			for _, name := range table.m[port] {
				if _, ok := b.DataInDecl(name); !ok {
					errs = append(errs, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("port reads undeclared data %q", name),
						Code:    ErrBadDataRef,
					})
				}
			}
		}
	}

	for _, port := range sortedKeys(b.Resources) {
		if !ports[port] {
			errs = append(errs, ValidationError{
				Field:   prefix + "resources." + port,
				Message: fmt.Sprintf("resource request for undeclared port %q", port),
				Code:    ErrBadResource,
			})
		}
	}
	return errs
}

func validateGlue(g *ir.Glue, types map[string]*ir.Behaviour) []ValidationError {
	var errs []ValidationError

	checkPort := func(field string, p ir.PortSpec) {
		b, ok := types[p.Type]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown component type %q", p.Type),
				Code:    ErrUnknownType,
			})
			return
		}
		if !b.IsEnforceable(p.Port) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s is not an enforceable port", p),
				Code:    ErrUnknownPort,
			})
		}
	}

	for i, r := range g.Requires {
		field := fmt.Sprintf("glue.require[%d]", i)
		checkPort(field+".effect", r.Effect)
		// E112: require needs at least one clause
		if len(r.Causes) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".causes",
				Message: fmt.Sprintf("require on %s has no cause clauses", r.Effect),
				Code:    ErrMissingCauses,
			})
		}
		for j, clause := range r.Causes {
			for k, p := range clause {
				checkPort(fmt.Sprintf("%s.causes[%d][%d]", field, j, k), p)
			}
		}
	}

	for i, a := range g.Accepts {
		field := fmt.Sprintf("glue.accept[%d]", i)
		checkPort(field+".effect", a.Effect)
		for j, p := range a.Causes {
			checkPort(fmt.Sprintf("%s.causes[%d]", field, j), p)
		}
	}

	for i, w := range g.Wires {
		field := fmt.Sprintf("glue.wires[%d]", i)
		var from, to ir.DataDecl
		var fromOK, toOK bool
		if b, ok := types[w.From.Type]; ok {
			from, fromOK = b.DataOutDecl(w.From.Data)
		}
		if b, ok := types[w.To.Type]; ok {
			to, toOK = b.DataInDecl(w.To.Data)
		}
		if !fromOK {
			errs = append(errs, ValidationError{
				Field:   field + ".from",
				Message: fmt.Sprintf("%s is not declared outgoing data", w.From),
				Code:    ErrUnknownWireData,
			})
		}
		if !toOK {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: fmt.Sprintf("%s is not declared incoming data", w.To),
				Code:    ErrUnknownWireData,
			})
		}
		if fromOK && toOK && from.Type != to.Type {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s is %s but %s is %s", w.From, from.Type, w.To, to.Type),
				Code:    ErrWireTypeMismatch,
			})
		}
	}
	return errs
}

// structField turns a validator namespace like "Behaviour.Ports[0].Kind"
// into a field path relative to the behaviour.
func structField(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return strings.ToLower(ns)
	}
	return strings.ToLower(rest)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "oneof":
		return fmt.Sprintf("%v is not one of [%s]", fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
