package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during an export.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase    Phase  // Operation phase
	Resource string // Resource the update is about, empty for run-wide phases
	Step     int    // Items fetched so far, or resources finished for run-wide phases
	Total    int    // Declared total for the same unit as Step
	Message  string // Human-readable message for display
	Err      error  // Set on failure updates
}

// Operation phase enumeration
type Phase int

const (
	FetchResource Phase = iota
	WriteResource
	ResourceDone
	ResourceFailed
	WriteManifest
	ArchiveExport
	ExportDone
)

func (p Phase) String() string {
	switch p {
	case FetchResource:
		return "fetch_resource"
	case WriteResource:
		return "write_resource"
	case ResourceDone:
		return "resource_done"
	case ResourceFailed:
		return "resource_failed"
	case WriteManifest:
		return "write_manifest"
	case ArchiveExport:
		return "archive_export"
	case ExportDone:
		return "export_done"
	default:
		return ""
	}
}

func fetchStartedUpdate(resource string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    FetchResource,
		Resource: resource,
		Message:  fmt.Sprintf("Fetching %s...", resource),
	}
}

func pageFetchedUpdate(resource string, fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    FetchResource,
		Resource: resource,
		Step:     fetched,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] %s", fetched, total, resource),
	}
}

func writingResourceUpdate(resource string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    WriteResource,
		Resource: resource,
		Step:     count,
		Total:    count,
		Message:  fmt.Sprintf("Writing %d %s...", count, resource),
	}
}

func resourceDoneUpdate(step, total int, resource string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    ResourceDone,
		Resource: resource,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] ✓ %s (%d items)", step, total, resource, count),
	}
}

func resourceFailedUpdate(step, total int, resource string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:    ResourceFailed,
		Resource: resource,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, resource, err),
		Err:      err,
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{Phase: WriteManifest, Message: fmt.Sprintf("Writing manifest %s", path)}
}

func archiveUpdate(path string) ProgressUpdate {
	return ProgressUpdate{Phase: ArchiveExport, Message: fmt.Sprintf("Archiving export to %s", path)}
}

func exportDoneUpdate(ok, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportDone,
		Step:    ok,
		Total:   total,
		Message: fmt.Sprintf("Exported %d of %d resources", ok, total),
	}
}
