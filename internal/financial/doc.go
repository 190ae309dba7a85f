// Package financial derives cost and profitability metrics for games.
//
// The projector is pure: it computes a cost record and a financial
// snapshot from a game's scraped numbers and its existing cost record.
// The calculator wraps the projector with persistence, writing the cost
// record before the snapshot so a snapshot never references costs that
// were not saved.
package financial
