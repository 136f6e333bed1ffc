// Package api serves the forecast impact HTTP API.
//
// Impact requests are submitted to a runner and answered immediately: 202
// with a job id to poll at /jobs/{id}, or 200 with the finished result when
// an identical request is still cached. The X-Cache-Hit header reports which.
// Cache administration routes require an admin identity.
package api
