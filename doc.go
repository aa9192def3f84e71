// Package main provides the entry point for the DOI registration
// service. It runs a Fiber web server whose every API request passes
// through an ordered security pipeline: client context extraction,
// Basic and token authentication, method and project-role authorization
// and an IP gate on administrative paths. Identity, project, user-role
// and token backends are pluggable and selected through the
// configuration file.
package main
