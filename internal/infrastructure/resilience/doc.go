/*
Package resilience provides a circuit breaker for calls to local dependencies
that can fail repeatedly, such as the snapshot database.

# States

	Closed --[Trip]-> Open --[Cooldown]-> Half-Open --[Probes successes]-> Closed
	                                          |
	                                      [failure]
	                                          v
	                                         Open

While open, Do returns ErrCircuitOpen without calling the function.

# Usage

	breaker := resilience.New("sqlite", resilience.Settings{
		Cooldown: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	err := breaker.Do(func() error { return tx.Commit() })
*/
package resilience
