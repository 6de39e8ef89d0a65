// Package tasks drains paged Spotify collections and orchestrates library exports with real-time progress reporting.
//
// # Pagination
//
// [Pager.FetchAll] walks one collection in one of two modes:
//
//  1. Offset mode: request offset 0, then offset = items fetched so far, until the count reaches
//     the latest declared total. total=120 with page size 50 requests offsets 0, 50, and 100.
//  2. Cursor mode: pass the previous page's cursor as "after" until the count reaches the total or
//     the server omits the cursor.
//
// A page that adds nothing while the collection is short of its total is a pagination error, so a
// misbehaving server cannot cause an endless loop. Descriptors with a child (playlists) have each
// item's nested collection fetched through the same fetcher and attached under the child field.
//
// # Export
//
// [ExportEngine.ExportAll] runs one job per resource on a bounded pond worker pool. Failures are
// captured per resource in [models.ResourceResult]; siblings keep going. Results are written with
// the formatter package, summarized in a manifest, optionally zipped, and recorded through a
// [RunRecorder].
//
// # Progress Reporting
//
// Progress updates are sent on a channel with select/default so a slow consumer never blocks the
// export. [ProgressUpdate] carries the phase, resource, counters, and a display message.
package tasks
