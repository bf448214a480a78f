// Package services defines shared utilities consumed by the pipeline actors.
//
// Key responsibilities:
//   - Context helpers that stamp upload identifiers, actor names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the pipeline's failure taxonomy.
//
// Use these helpers when wiring new actor logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
