package vm

import "github.com/caarlos0/env/v6"

// Config holds the interpreter's debug toggles, read from the environment,
// plus a step budget modeled on a cooperative cancellation check but
// adapted here to a hard execution-time safety valve: ember has no
// concurrency or cancellation of its own, but a runaway script should still
// terminate rather than run forever.
type Config struct {
	// StressGC forces a collection on every allocation.
	StressGC bool `env:"EMBER_STRESS_GC" envDefault:"false"`
	// LogGC prints one line to Stderr when each collection begins and one
	// when it ends (bytes collected, heap size before and after, next
	// threshold). Individual allocations, marks and frees are not logged.
	LogGC bool `env:"EMBER_LOG_GC" envDefault:"false"`
	// TraceExec prints the stack and the current instruction before each
	// dispatch-loop iteration, in the disassembler's listing format.
	TraceExec bool `env:"EMBER_TRACE_EXEC" envDefault:"false"`
	// MaxSteps bounds the number of dispatch-loop iterations a single
	// Interpret call may execute before it is aborted as a runtime error.
	// Zero means unlimited.
	MaxSteps uint64 `env:"EMBER_MAX_STEPS" envDefault:"0"`
}

// LoadConfig reads Config from the environment, applying the defaults
// above for any variable that is unset.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
