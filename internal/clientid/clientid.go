// Package clientid generates a per-process client instance identifier,
// used as the default OAuth dynamic-registration software_id when the
// embedder doesn't supply one. It is not added to log records.
package clientid

import "github.com/google/uuid"

var processID = uuid.New().String()

// Current returns this process's instance id. Stable for the process
// lifetime.
func Current() string {
	return processID
}
