// Package render draws ship's terminal interface: the scan progress line, the verbose
// analysis trail, the update summary, the confirmation prompt and the per-stack update
// tree.
package render
