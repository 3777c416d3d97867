// Package services holds the application service layer. The
// DashboardService owns the canonical sales table, the default-state
// baseline snapshot, and every operation the HTTP transport exposes:
// facet lookups, filter queries, reset, summary, and export. Services
// expose plain data in / data out methods so any transport can call
// them.
package services
