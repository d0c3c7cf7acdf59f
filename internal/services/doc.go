// Package services defines the shared error taxonomy used to classify
// failures across the conversion pipeline.
package services
