// Package triage provides the business boundary for adjuster's claim
// decisions. It defines the Service (provider registry, decide, review),
// the insert-only Store interface, and the decision Record model.
package triage
