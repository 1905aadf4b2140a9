package workflowtest

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/amp-labs/amp-workflow/graph"
	"github.com/amp-labs/amp-workflow/guard"
	"github.com/amp-labs/amp-workflow/workflow"
	"github.com/stretchr/testify/require"
)

// RecordingStore is an in-memory workflow.Store that keeps every write.
// Failures can be injected per target state.
type RecordingStore struct {
	mu        sync.Mutex
	state     string
	persisted []string
	loads     int
	failOn    map[string]error
}

var _ workflow.Store = (*RecordingStore)(nil)

// NewRecordingStore returns a store holding initial, which may be "".
func NewRecordingStore(initial string) *RecordingStore {
	return &RecordingStore{
		state:  initial,
		failOn: make(map[string]error),
	}
}

// FailOn makes writes of state return err.
func (s *RecordingStore) FailOn(state string, err error) *RecordingStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failOn[state] = err

	return s
}

func (s *RecordingStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++

	return s.state, nil
}

func (s *RecordingStore) Persist(_ context.Context, state string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failOn[state]; ok {
		return nil, err
	}

	s.state = state
	s.persisted = append(s.persisted, state)

	return len(s.persisted), nil
}

// State returns the stored state.
func (s *RecordingStore) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Persisted returns every state written, in order.
func (s *RecordingStore) Persisted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.persisted)
}

// Loads returns how many times the state was read.
func (s *RecordingStore) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loads
}

// Order is a host type for the common fixture workflows.
type Order struct {
	Amount   int
	Approved bool
	Attempts int
}

// IsApproved is used as a method guard by BranchingSpec.
func (o *Order) IsApproved() bool {
	return o.Approved
}

// LinearConfig is a three-step workflow with no guards.
func LinearConfig() *graph.Config {
	return &graph.Config{
		Name: "linear",
		States: []graph.StateConfig{
			{Name: "draft", Events: []graph.EventConfig{{Name: "submit", To: "submitted"}}},
			{Name: "submitted", Events: []graph.EventConfig{{Name: "complete", To: "done"}}},
			{Name: "done", Tags: []string{"final"}},
		},
	}
}

// LinearSpec builds LinearConfig.
func LinearSpec(t *testing.T) *graph.Spec {
	t.Helper()

	spec, err := LinearConfig().Build()
	require.NoError(t, err, "failed to build linear spec")

	return spec
}

// BranchingSpec routes an Order by guards: approved orders ship, large
// unapproved orders go to review, the rest are rejected.
func BranchingSpec(t *testing.T) *graph.Spec {
	t.Helper()

	b := graph.NewBuilder("branching")
	b.State("pending").EventFunc("decide", func(eb *graph.EventBuilder) {
		eb.To("shipped", guard.If(guard.Method("IsApproved")))
		eb.To("review", guard.If(guard.Expr("Amount > 100")))
		eb.To("rejected")
	})
	b.State("review").Event("approve", "shipped").Event("reject", "rejected")
	b.State("shipped", graph.WithTags("final"))
	b.State("rejected", graph.WithTags("final"))

	spec, err := b.Build()
	require.NoError(t, err, "failed to build branching spec")

	return spec
}

// LoopSpec retries until a guard lets the workflow leave the loop.
func LoopSpec(t *testing.T) *graph.Spec {
	t.Helper()

	b := graph.NewBuilder("loop")
	b.State("waiting").Event("poll", "checking")
	b.State("checking").EventFunc("check", func(eb *graph.EventBuilder) {
		eb.To("ready", guard.If(guard.Func("enough_attempts", func(o *Order) bool {
			return o.Attempts >= 3
		})))
		eb.To("waiting")
	})
	b.State("ready")

	spec, err := b.Build()
	require.NoError(t, err, "failed to build loop spec")

	return spec
}

// QuietDefinition defines host type T over spec with metrics and tracing off
// so tests do not touch global state.
func QuietDefinition[T any](spec *graph.Spec, opts ...workflow.Option) *workflow.Definition[T] {
	cfg := workflow.DefaultConfig()
	cfg.MetricsEnabled = false
	cfg.TracingEnabled = false

	return workflow.Define[T](spec, append([]workflow.Option{workflow.WithConfig(cfg)}, opts...)...)
}

// WriteConfig writes config as YAML into a temporary directory and returns the path.
func WriteConfig(t *testing.T, config *graph.Config) string {
	t.Helper()

	data, err := config.Marshal()
	require.NoError(t, err, "failed to marshal config")

	path := filepath.Join(t.TempDir(), config.Name+".yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}
