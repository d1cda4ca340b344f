// ABOUTME: HostEnvironment abstracts the browser-side capabilities the agent needs.
// ABOUTME: One interface replaces the per-browser variants of the extension glue.

package client

import "log/slog"

// HostEnvironment is the capability interface the presence agent invokes
// when a call event arrives. Real implementations bridge to the hosting
// browser's extension APIs (tab focus, script injection); the CRM page
// automation itself lives behind these two calls and is out of scope here.
type HostEnvironment interface {
	// FocusOrOpenTargetWindow brings the CRM window for the given search
	// target to the foreground, opening it if necessary.
	FocusOrOpenTargetWindow(target string) error
	// RunInPage executes a script in the CRM page, e.g. to trigger the
	// customer search.
	RunInPage(script string) error
}

// LogHost is a HostEnvironment that only logs what it would do. Used by
// the standalone agent binary and in tests.
type LogHost struct {
	Logger *slog.Logger
}

func (h *LogHost) FocusOrOpenTargetWindow(target string) error {
	h.Logger.Info("focus target window", "target", target)
	return nil
}

func (h *LogHost) RunInPage(script string) error {
	h.Logger.Info("run in page", "script", script)
	return nil
}
