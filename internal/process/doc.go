// Package process supervises long-running in-process tasks.
//
// A Manager runs a Task and, when it fails with a retryable error, restarts
// it after an exponential backoff. Failures the caller marks as permanent
// (through Config.IsRetryable) end supervision immediately.
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:               "shadow-sync",
//	    RestartOnFailure:   true,
//	    RestartDelay:       5 * time.Second,
//	    MaxRestartDelay:    5 * time.Minute,
//	    MaxRestartAttempts: 10,
//	    IsRetryable: func(err error) bool {
//	        return errors.Is(err, syncloop.ErrChannelEstablish)
//	    },
//	})
//
//	err := mgr.Run(ctx, func(ctx context.Context) error {
//	    return loop.Run(ctx)
//	})
//
// Panics inside a task are recovered and treated as failures.
package process
