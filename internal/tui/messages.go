// Package tui provides the Bubble Tea model of the terminal tour.
package tui

// SceneLoadedMsg is emitted when a navigation completed, successfully or not.
type SceneLoadedMsg struct {
	SceneID string
	Err     error
}

// BrowserOpenedMsg is emitted after trying to open the tour in a browser.
type BrowserOpenedMsg struct {
	URL string
	Err error
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}
