package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"storefront/internal/auth"
	"storefront/internal/session"
	"storefront/pkg/logging"
)

// notifyFunc sends a service state to the supervisor. It reports whether the
// notification was delivered.
type notifyFunc func(state string) (bool, error)

func systemdNotify(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

// RunWatch keeps the session alive until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
//
// Behavior:
//   - Switches logging to the configured rotating file when one is set
//   - Runs the observer's periodic expiry check and cross-process watch
//   - Logs every authentication state transition
//   - Notifies systemd of readiness and shutdown when run as a unit
func (a *Application) RunWatch(ctx context.Context) error {
	return a.runWatch(ctx, systemdNotify)
}

func (a *Application) runWatch(ctx context.Context, notify notifyFunc) error {
	logCfg := a.config.Storefront.Logging
	if logCfg.File != "" {
		level, err := logging.ParseLevel(logCfg.Level)
		if err != nil {
			return err
		}
		if a.config.Debug {
			level = logging.LevelDebug
		}
		closer := logging.InitForFile(level, logging.FileOptions{
			Path:       logCfg.File,
			MaxSizeMB:  logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAgeDays: logCfg.MaxAgeDays,
		})
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observer := a.services.Observer
	updates, unsubscribe := observer.Subscribe()
	defer unsubscribe()
	go logTransitions(updates)

	logging.Info("Watch", "Watching session %q (%s storage)", a.config.Storefront.Session.Name, a.services.Store.BackendName())
	if sent, err := notify(daemon.SdNotifyReady); err != nil {
		logging.Warn("Watch", "Failed to notify systemd readiness: %v", err)
	} else if sent {
		logging.Debug("Watch", "Notified systemd readiness")
	}

	err := observer.Run(ctx)

	if _, notifyErr := notify(daemon.SdNotifyStopping); notifyErr != nil {
		logging.Warn("Watch", "Failed to notify systemd shutdown: %v", notifyErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("Watch", err, "Session watch stopped")
		return err
	}
	logging.Info("Watch", "Stopped watching session")
	return nil
}

func logTransitions(updates <-chan session.Snapshot) {
	authenticated := false
	first := true
	for snap := range updates {
		if snap.IsLoading {
			continue
		}
		if !first && snap.IsAuthenticated == authenticated {
			continue
		}
		first = false
		authenticated = snap.IsAuthenticated
		if authenticated {
			logging.Info("Watch", "Session is %s", auth.AuthStateAuthenticated)
		} else {
			logging.Warn("Watch", "Session is %s, run 'storefront auth login'", auth.AuthStateUnauthenticated)
		}
	}
}
