// Package entities contains the core domain types of the exception engine:
// admission rules, time-bound exceptions, admission requests and decisions,
// and audit records. Types here carry data and pure behavior only; storage
// and evaluation machinery live behind the ports package.
package entities
