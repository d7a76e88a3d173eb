// Package app wires the scheduled mailer: the Lambda handler, the local
// schedule loop, and the runtime that picks a transport and delivery log.
package app
