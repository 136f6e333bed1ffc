// Package job tracks asynchronous units of work by identifier.
//
// A Registry hands out random identifiers, records each job as pending and
// accepts exactly one terminal transition per job. Terminal jobs may be
// retired after a retention period; pending jobs are never retired.
package job
