// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing messages and conversation state. They are
// not intended for production usage.
package testutil
