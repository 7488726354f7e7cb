// Package memory keeps the relay's Go heap inside its container limit.
//
// The relay shares its container with the encoder process, which is by far
// the larger consumer. [ConfigureFromEnv] therefore gives the Go heap only
// MEMORY_RATIO (default 0.5) of MEMORY_LIMIT via GOMEMLIMIT, leaving the rest
// to ffmpeg. GOMEMLIMIT, when set directly, takes precedence.
//
// A [Monitor] samples heap usage against that limit. Above the critical
// water mark it reports [Monitor.Paused], and the ingest handler refuses new
// sessions with 503 until usage falls back under the high water mark. The
// active session is never interrupted.
//
// Kubernetes example:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
package memory
