// Package file stores the contact log as a single JSON document. Every
// mutation rewrites the whole document through a temp file and a rename, so
// a crash leaves either the old or the new log on disk, never a mix. An
// advisory lock file serializes writers across processes.
package file
