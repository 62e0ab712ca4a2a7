/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package service manages the lifecycle of the daemon's components.
// Every long-running component (HTTP server, cache cleanup, rate limit log pruning) is a Unit.
// Units are combined into a CompositeUnit and run by a Service until a shutdown signal arrives.
package service
