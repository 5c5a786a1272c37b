package engine

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/covenanthq/covenant/internal/pact"
)

// Default solver parameters. The bound and tolerance are deterministic
// functions of the input, not of wall-clock time.
const (
	// DefaultMaxIterations is the iteration bound after which the
	// computation fails with a ConvergenceError.
	DefaultMaxIterations = 100

	// DefaultTolerance is one milliunit (1e-3): a pass converges when no
	// slot moved by more than this.
	DefaultTolerance = pact.Amount(1)
)

// DefaultUncappedSeed is the stand-in multiplier used when seeding an
// uncapped proportional promise: the seed is rate x this many units. The
// constant is engine-level and configurable so its bias on convergence is
// visible rather than buried in promise data.
var DefaultUncappedSeed = pact.FromUnits(1000)

// Roster resolves member ids to display names during materialization.
// Username resolution is a lookup, not part of the fixed-point computation.
type Roster interface {
	Username(id pact.UserID) string
}

// Input is one self-contained solve request: the group's active commitments
// and membership, fully hydrated. The engine never reads storage.
type Input struct {
	GroupID     string
	Members     []pact.UserID
	Commitments []pact.Commitment
	Roster      Roster // optional; nil leaves usernames empty
}

// Record is one positive-amount liability in a settlement.
type Record struct {
	User      pact.UserID `json:"user"`
	Username  string      `json:"username,omitempty"`
	Action    string      `json:"action"`
	Amount    pact.Amount `json:"amount"`
	Unit      string      `json:"unit"`
	Effective []string    `json:"effective"`
}

// Settlement is the result of a converged solve: every positive-amount
// slot, grouped by user then action then unit, plus the iteration count.
type Settlement struct {
	GroupID    string      `json:"group"`
	Records    []Record    `json:"liabilities"`
	Iterations int         `json:"iterations"`
	Trace      []Iteration `json:"trace,omitempty"`
}

// Solver is the function-call contract for liability computation. Engine is
// the production implementation; the interface exists so an alternative
// algorithm can be substituted without touching callers.
type Solver interface {
	Solve(ctx context.Context, in Input) (*Settlement, error)
}

// Engine solves the liability fixed point with optimistic seeding and
// reset-then-recompute iteration.
//
// INVARIANTS:
//   - amounts are never negative
//   - a slot's effective id set is non-empty iff its amount is positive,
//     and is recomputed (not accumulated) each pass
//   - conditions and promises are evaluated against the previous pass's
//     snapshot only
type Engine struct {
	maxIterations int
	tolerance     pact.Amount
	uncappedSeed  pact.Amount
	trace         bool
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations sets the iteration bound.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithTolerance sets the per-slot convergence tolerance.
func WithTolerance(t pact.Amount) Option {
	return func(e *Engine) {
		e.tolerance = t
	}
}

// WithUncappedSeed sets the multiplier used to seed uncapped proportional
// promises. Use a small value to test seeding bias.
func WithUncappedSeed(units pact.Amount) Option {
	return func(e *Engine) {
		e.uncappedSeed = units
	}
}

// WithTrace records a per-iteration snapshot of every tracked slot on the
// returned Settlement. Intended for the trace CLI command and debugging;
// off by default.
func WithTrace() Option {
	return func(e *Engine) {
		e.trace = true
	}
}

// WithLogger sets the structured logger. Defaults to a discard logger so
// library use stays quiet unless a caller opts in.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxIterations: DefaultMaxIterations,
		tolerance:     DefaultTolerance,
		uncappedSeed:  DefaultUncappedSeed,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Solve computes the liability fixed point for one group.
//
// Returns a ConvergenceError (and no partial result) when the iteration
// bound is reached before every slot settles within tolerance. Context
// cancellation is checked between iterations only; the loop itself has no
// suspension points.
func (e *Engine) Solve(ctx context.Context, in Input) (*Settlement, error) {
	members := slices.Clone(in.Members)
	slices.Sort(members)
	members = slices.Compact(members)

	memberSet := make(map[pact.UserID]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	slots := extractSlots(in.Commitments)
	prev := seedState(members, slots, in.Commitments, e.uncappedSeed)

	e.logger.Debug("solve starting",
		"group", in.GroupID,
		"members", len(members),
		"commitments", len(in.Commitments),
		"slots", len(slots),
	)

	var (
		trace     []Iteration
		residual  pact.Amount
		worstUser pact.UserID
		worstSlot pact.Slot
	)

	for iter := 1; iter <= e.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := newState(members, slots)
		for _, c := range in.Commitments {
			if !memberSet[c.Creator] {
				// Creator no longer in the group: the commitment cannot
				// establish liabilities. Data-integrity signal for upstream.
				e.logger.Warn("commitment creator not in group",
					"group", in.GroupID,
					"commitment", c.ID,
					"creator", c.Creator,
				)
				continue
			}
			if !e.conditionsHold(c, prev, memberSet, in.GroupID) {
				continue
			}
			for _, p := range c.Promises {
				amount := e.promiseAmount(c, p, prev)
				next.offer(c.Creator, p.Slot(), amount, c.ID)
			}
		}

		if e.trace {
			trace = append(trace, snapshotIteration(iter, next, members, slots))
		}

		residual, worstUser, worstSlot = maxResidual(prev, next, members, slots)
		if residual <= e.tolerance {
			e.logger.Info("solve converged",
				"group", in.GroupID,
				"iterations", iter,
				"residual", residual,
			)
			settlement := e.materialize(in, next, members)
			settlement.Iterations = iter
			settlement.Trace = trace
			return settlement, nil
		}

		e.logger.Debug("iteration did not settle",
			"group", in.GroupID,
			"iteration", iter,
			"residual", residual,
			"user", worstUser,
			"slot", worstSlot,
		)
		prev = next
	}

	e.logger.Error("solve did not converge",
		"group", in.GroupID,
		"iterations", e.maxIterations,
		"residual", residual,
		"user", worstUser,
		"slot", worstSlot,
	)
	return nil, &ConvergenceError{
		GroupID:    in.GroupID,
		Iterations: e.maxIterations,
		Residual:   residual,
		User:       worstUser,
		Slot:       worstSlot,
	}
}

var _ Solver = (*Engine)(nil)
