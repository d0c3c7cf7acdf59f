// Package plan maps resolved input files to output targets and classifies
// each one as create, overwrite, or skip.
package plan
