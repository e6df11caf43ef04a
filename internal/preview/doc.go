// Package preview hosts the server that serves a finished production build
// over HTTP(S). It resolves options from the layered configuration, scans
// the dist directory into an immutable file index, assembles the fixed
// middleware chain (public files before the SPA fallback), and owns the
// listen/close lifecycle with strict port binding. Callers construct a
// Server with New, bind it with Listen, and tear it down with Close; all
// failures before Listening leave the instance terminal, so a caller
// retries by building a new one.
package preview
