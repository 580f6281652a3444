// Package replog constructs the structured logger shared by the
// replication core's components. It wraps github.com/joeycumines/logiface
// with the github.com/joeycumines/stumpy JSON sink, providing a safe no-op
// default so collaborators never need to nil-check an injected logger.
package replog
