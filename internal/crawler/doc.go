// Package crawler implements the bounded frontier crawl for a single source:
// breadth-first traversal from the configured start URLs, immediate download of
// document links found on listing pages, and a per-source download quota. Every
// request passes through the politeness gate before it is issued.
package crawler
