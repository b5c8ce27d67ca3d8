/*
Package domain contains the vocabulary shared by the store runtime and its adapters.

It is kept free of I/O and of any stream machinery: it only names the things that flow
around a store activation and the ways an activation can fail.

# Key Entities

  - Typed: optional discriminant an action may expose (TypeOf falls back to the Go type).
  - Fault: the terminal error of an activation, classified by FaultKind.
  - Hooks: lifecycle callbacks (activation, transition, teardown) used for observability.
*/
package domain
