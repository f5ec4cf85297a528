// Package ports defines the interfaces between the engine's domain and its
// adapters: rule and exception stores, the audit sink, and the clock.
package ports
