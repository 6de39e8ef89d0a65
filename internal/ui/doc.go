// Package ui implements the export progress screen using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [ExportView] : one row per resource with a spinner, a per-page item count, and an overall progress bar
//  2. [ResultView] : the final status of every resource with its item count, file, or error
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the export engine, which never blocks on a slow screen.
//
// Quitting while the export runs cancels its context. Contextual help is displayed via charmbracelet/bubbles/help.
package ui
