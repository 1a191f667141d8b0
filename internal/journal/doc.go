// Package journal records task and upload outcomes in a small SQLite database
// so operators can answer "what happened to my download" after the fact.
//
// The descriptor files remain the only source of truth for task state; the
// journal is an append-only history. Writes go through Recorder, which logs
// and swallows failures so a broken journal never stalls a pipeline.
//
// Schema changes append a step to migrations in schema.go. Open applies any
// pending steps and refuses databases written by a newer build.
package journal
