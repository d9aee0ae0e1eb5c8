// Package progress carries collection and dispatch progress from the
// pipelines to observers. Pipelines publish Events through an Emitter; the
// Hub buffers them without ever blocking the publisher, preserves their
// order, and fans batches out to pluggable sinks (logs, Prometheus, live
// streams, Pub/Sub).
package progress
