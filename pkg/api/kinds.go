package api

import "github.com/google/uuid"

// enrichPayload is the body POST /research enqueues onto the enrich kind.
// Its JSON shape must match pkg/handlers.enrichPayload; the two packages
// intentionally don't share the Go type, only the wire shape.
type enrichPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// KindEnrich is the first queue kind in a job's life, mirrors
// pkg/handlers.KindEnrich.
const KindEnrich = "enrich"
