// Package harvest sequences a batch run: crawl each source, then fingerprint,
// delta-check, extract and persist every downloaded document. One failing
// document never aborts the run.
package harvest
