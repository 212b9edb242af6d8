package state

const (
	// Unbounded is the configuration value for "no link". It is normalised to the run's infinity.
	Unbounded = ^Metric(0)
	// NoRoute is the next hop of a destination that has no known path.
	NoRoute NodeId = -1
)

var (
	// DefaultInfinity matches the sentinel used by the classic lab simulator, small enough that
	// count-to-infinity terminates in a reasonable number of rounds.
	DefaultInfinity = Metric(999)
	DefaultDelay    = 1.0
	// DefaultMaxEvents bounds a simulation run so a looping topology cannot run forever.
	DefaultMaxEvents = 1_000_000
	MaxNodes         = 4096

	// MailboxFlushBatch is the maximum number of updates an async node drains per wakeup.
	MailboxFlushBatch = 64

	DefaultScenarioPath = "scenario.yaml"
)

var (
	DBG_log_route_changes = false // log route changes at info level
	DBG_log_updates       = false // log every delivered update
	DBG_debug             = false // serve expvar and /debug/metrics on DebugAddr
	DBG_trace             = false // write a runtime trace to trace.out

	DebugAddr = "127.0.0.1:6060"
)
