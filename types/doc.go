// Package types defines the store contract shared by the click statistics
// packages: the record shape written to the single click table, the
// capability interface every backend implements, and the error taxonomy
// callers can match with [errors.Is].
//
// Backends live in sibling packages (dynamodb, postgres, redis, memory) and
// are selected at process start. The access pattern library in package
// clicks depends only on [Store].
package types
